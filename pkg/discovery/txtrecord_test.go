package discovery

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeTXT(t *testing.T) {
	info := &Info{Instance: "gate-web", Backend: "firebase", ID: "abc"}
	txt := EncodeTXT(info)

	if txt[TXTKeyVersion] != APIVersion {
		t.Errorf("v = %q, want %q", txt[TXTKeyVersion], APIVersion)
	}
	if txt[TXTKeyAPIPath] != DefaultAPIPath {
		t.Errorf("api = %q, want %q", txt[TXTKeyAPIPath], DefaultAPIPath)
	}

	var svc Service
	if err := DecodeTXT(txt, &svc); err != nil {
		t.Fatalf("DecodeTXT() error = %v", err)
	}
	if svc.Backend != "firebase" || svc.ID != "abc" || svc.APIPath != DefaultAPIPath {
		t.Errorf("DecodeTXT() = %+v", svc)
	}
}

func TestEncodeTXTOmitsOptional(t *testing.T) {
	txt := EncodeTXT(&Info{APIPath: "/gate"})
	if _, ok := txt[TXTKeyBackend]; ok {
		t.Error("store key present without backend")
	}
	if _, ok := txt[TXTKeyID]; ok {
		t.Error("id key present without id")
	}
	if txt[TXTKeyAPIPath] != "/gate" {
		t.Errorf("api = %q, want /gate", txt[TXTKeyAPIPath])
	}
}

func TestDecodeTXTInvalid(t *testing.T) {
	tests := []struct {
		name    string
		txt     TXTRecordMap
		wantErr error
	}{
		{"MissingVersion", TXTRecordMap{TXTKeyAPIPath: "/api/v1"}, ErrMissingRequired},
		{"EmptyVersion", TXTRecordMap{TXTKeyVersion: "", TXTKeyAPIPath: "/api/v1"}, ErrMissingRequired},
		{"BadVersion", TXTRecordMap{TXTKeyVersion: "one", TXTKeyAPIPath: "/api/v1"}, ErrInvalidTXTRecord},
		{"MissingPath", TXTRecordMap{TXTKeyVersion: "1.0"}, ErrMissingRequired},
		{"RelativePath", TXTRecordMap{TXTKeyVersion: "1.0", TXTKeyAPIPath: "api"}, ErrInvalidTXTRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var svc Service
			if err := DecodeTXT(tt.txt, &svc); !errors.Is(err, tt.wantErr) {
				t.Errorf("DecodeTXT() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTXTStringsRoundTrip(t *testing.T) {
	strs := TXTRecordsToStrings(TXTRecordMap{"v": "1", "api": "/api/v1", "flag": ""})
	if got := strings.Join(strs, ","); got != "api=/api/v1,flag=,v=1" {
		t.Errorf("TXTRecordsToStrings() = %q", got)
	}

	txt := StringsToTXTRecords([]string{"v=1", "api=/a=b", "flag", ""})
	if txt["api"] != "/a=b" {
		t.Errorf("api = %q, want /a=b", txt["api"])
	}
	if v, ok := txt["flag"]; !ok || v != "" {
		t.Errorf("flag = %q, %v", v, ok)
	}
	if len(txt) != 3 {
		t.Errorf("len = %d, want 3", len(txt))
	}
}

func TestValidateInstanceName(t *testing.T) {
	if err := ValidateInstanceName("gate-web"); err != nil {
		t.Errorf("ValidateInstanceName() error = %v", err)
	}
	if err := ValidateInstanceName(""); !errors.Is(err, ErrEmptyInstanceName) {
		t.Errorf("empty: error = %v", err)
	}
	if err := ValidateInstanceName(strings.Repeat("x", 64)); !errors.Is(err, ErrInstanceNameTooLong) {
		t.Errorf("long: error = %v", err)
	}
}

func TestServiceURL(t *testing.T) {
	svc := &Service{Host: "gate.local.", Port: 8080, APIPath: "/api/v1"}
	if got := svc.URL(); got != "http://gate.local.:8080/api/v1" {
		t.Errorf("URL() = %q", got)
	}

	svc.Addresses = []string{"fe80::1", "192.168.1.5"}
	if got := svc.URL(); got != "http://[fe80::1]:8080/api/v1" {
		t.Errorf("URL() = %q", got)
	}
}

func TestServiceCompatible(t *testing.T) {
	if !(&Service{Version: APIVersion}).Compatible() {
		t.Error("current version should be compatible")
	}
	if (&Service{Version: "2.0"}).Compatible() {
		t.Error("2.0 should not be compatible")
	}
	if (&Service{Version: APIVersion, APIPath: "/api/v2"}).Compatible() {
		t.Error("/api/v2 should not be compatible")
	}
	if !(&Service{Version: APIVersion, APIPath: "/gate"}).Compatible() {
		t.Error("an unversioned path should be compatible")
	}
}
