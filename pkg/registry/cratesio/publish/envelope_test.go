package publish

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
)

func buildEnvelope(t *testing.T, manifest []byte, archive []byte) []byte {
	t.Helper()
	buf := make([]byte, 0, 8+len(manifest)+len(archive))
	jsonLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(jsonLen, uint32(len(manifest)))
	buf = append(buf, jsonLen...)
	buf = append(buf, manifest...)
	crateLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(crateLen, uint32(len(archive)))
	buf = append(buf, crateLen...)
	buf = append(buf, archive...)
	return buf
}

func TestParseS1Envelope(t *testing.T) {
	manifest := []byte(`{
		"name": "foo",
		"vers": "0.1.0",
		"deps": [{
			"name": "rand",
			"version_req": "^0.6",
			"features": ["i128_support"],
			"optional": false,
			"default_features": true,
			"target": null,
			"kind": "normal",
			"registry": null,
			"explicit_name_in_toml": null
		}],
		"features": {"extras": ["rand/simd_support"]},
		"links": null
	}`)
	body := buildEnvelope(t, manifest, []byte("owo"))

	env, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if env.Manifest.Name != "foo" || env.Manifest.Vers != "0.1.0" {
		t.Fatalf("manifest = %+v", env.Manifest)
	}
	if string(env.Archive) != "owo" {
		t.Fatalf("archive = %q, want %q", env.Archive, "owo")
	}
	if len(env.Manifest.Deps) != 1 || env.Manifest.Deps[0].VersionReq != "^0.6" {
		t.Fatalf("deps = %+v", env.Manifest.Deps)
	}

	rec := env.Manifest.ToRecord("43cae2eafda4d7a9b31768c8a6f086d7942e97d3a96c75326b3a1f4b17b1cffd")
	want := `{"name":"foo","vers":"0.1.0","deps":[{"name":"rand","req":"^0.6","features":["i128_support"],"optional":false,"default_features":true,"target":null,"kind":"normal","registry":null,"package":null}],"cksum":"43cae2eafda4d7a9b31768c8a6f086d7942e97d3a96c75326b3a1f4b17b1cffd","features":{"extras":["rand/simd_support"]},"yanked":false,"links":null}`
	got, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(got) != want {
		t.Fatalf("record json =\n%s\nwant\n%s", got, want)
	}
}

func TestParseRejectsShortBody(t *testing.T) {
	_, err := Parse([]byte{1, 2, 3})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse(short) = %v, want ErrMalformed", err)
	}
}

func TestParseRejectsOversizedJSONLen(t *testing.T) {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint32(body[0:4], 1000)
	_, err := Parse(body)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse(oversized json_len) = %v, want ErrMalformed", err)
	}
}

func TestParseRejectsTrailingBytes(t *testing.T) {
	manifest := []byte(`{"name":"foo","vers":"0.1.0"}`)
	body := buildEnvelope(t, manifest, []byte("owo"))
	body = append(body, 0xff)
	_, err := Parse(body)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse(trailing bytes) = %v, want ErrMalformed", err)
	}
}

func TestParseRejectsInvalidJSON(t *testing.T) {
	body := buildEnvelope(t, []byte(`not json`), []byte("owo"))
	_, err := Parse(body)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("Parse(invalid json) = %v, want ErrMalformed", err)
	}
}

func TestToRecordDefaultsNilDepsAndFeatures(t *testing.T) {
	m := Manifest{Name: "foo", Vers: "0.1.0"}
	rec := m.ToRecord("a")
	if rec.Deps == nil {
		t.Fatalf("Deps is nil, want empty slice")
	}
	if string(rec.Features) != "{}" {
		t.Fatalf("Features = %s, want {}", rec.Features)
	}
}
