package fsstore

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type testRecord struct {
	ID        string    `yaml:"id" validate:"required"`
	Status    string    `yaml:"status" validate:"required,oneof=in-progress paused completed failed"`
	CreatedAt time.Time `yaml:"created_at" validate:"required"`
	Outputs   []string  `yaml:"outputs,omitempty"`
}

func validRecord() *testRecord {
	return &testRecord{
		ID:        "sess-1700000000000",
		Status:    "in-progress",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Outputs:   []string{"prd-extract/prd.md"},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec()
	in := validRecord()

	data, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var out testRecord
	if err := codec.Decode(data, &out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !reflect.DeepEqual(*in, out) {
		t.Errorf("round trip mismatch:\nin:  %+v\nout: %+v", *in, out)
	}
}

func TestCodec_DecodeRejectsInvalidStatus(t *testing.T) {
	codec := NewCodec()
	data := []byte("id: sess-1\nstatus: exploded\ncreated_at: 2026-03-01T12:00:00Z\n")

	var out testRecord
	err := codec.Decode(data, &out)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if !strings.Contains(ve.Field, "Status") {
		t.Errorf("expected offending field Status, got %q", ve.Field)
	}
	if ve.Constraint != "oneof" {
		t.Errorf("expected constraint oneof, got %q", ve.Constraint)
	}
}

func TestCodec_DecodeRejectsUnknownFields(t *testing.T) {
	codec := NewCodec()
	data := []byte("id: sess-1\nstatus: completed\ncreated_at: 2026-03-01T12:00:00Z\nbogus: true\n")

	var out testRecord
	if err := codec.Decode(data, &out); !IsValidationError(err) {
		t.Fatalf("expected ValidationError for unknown field, got %v", err)
	}
}

func TestCodec_EncodeRejectsMissingRequired(t *testing.T) {
	codec := NewCodec()
	rec := validRecord()
	rec.ID = ""

	if _, err := codec.Encode(rec); !IsValidationError(err) {
		t.Fatalf("expected ValidationError for missing id, got %v", err)
	}
}

func TestCodec_SaveLoad(t *testing.T) {
	codec := NewCodec()
	path := filepath.Join(t.TempDir(), "record.yaml")
	in := validRecord()

	if err := codec.Save(path, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var out testRecord
	if err := codec.Load(path, &out); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(*in, out) {
		t.Errorf("save/load mismatch:\nin:  %+v\nout: %+v", *in, out)
	}
}

func TestCodec_SaveRefusesInvalidRecord(t *testing.T) {
	codec := NewCodec()
	path := filepath.Join(t.TempDir(), "record.yaml")
	rec := validRecord()
	rec.Status = "not-a-status"

	if err := codec.Save(path, rec); !IsValidationError(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCodec_LoadMissingFile(t *testing.T) {
	codec := NewCodec()

	var out testRecord
	if err := codec.Load(filepath.Join(t.TempDir(), "absent.yaml"), &out); err == nil {
		t.Fatal("expected error for missing file")
	}
}
