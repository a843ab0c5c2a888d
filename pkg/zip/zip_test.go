package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
	"time"
)

func TestWriteArchive(t *testing.T) {
	buf := &bytes.Buffer{}
	err := Write(buf, []Asset{
		{Filename: "scene-01.png", MIME: "image/png", Data: []byte("one")},
		{Filename: "scene-01.png", MIME: "image/png", Data: []byte("two")},
		{Filename: "../../etc/notes.txt", MIME: "text/plain", Data: []byte("three")},
		{Filename: "", MIME: "image/png", Data: []byte("four")},
	}, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	data := buf.Bytes()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	want := map[string]string{
		"scene-01.png":   "one",
		"scene-01-2.png": "two",
		"notes.txt":      "three",
		"asset-04":       "four",
	}
	if len(zr.File) != len(want) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(want))
	}
	for _, f := range zr.File {
		body, ok := want[f.Name]
		if !ok {
			t.Fatalf("unexpected entry %q", f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != body {
			t.Fatalf("%s = %q, want %q", f.Name, got, body)
		}
	}
}
