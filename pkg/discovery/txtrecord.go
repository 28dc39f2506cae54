package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gate-remote/gate-go/pkg/version"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT creates the TXT records for info.
func EncodeTXT(info *Info) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyVersion] = APIVersion
	txt[TXTKeyAPIPath] = info.APIPath
	if txt[TXTKeyAPIPath] == "" {
		txt[TXTKeyAPIPath] = DefaultAPIPath
	}

	if info.Backend != "" {
		txt[TXTKeyBackend] = info.Backend
	}
	if info.ID != "" {
		txt[TXTKeyID] = info.ID
	}
	return txt
}

// DecodeTXT parses TXT records into the fields of a Service.
func DecodeTXT(txt TXTRecordMap, svc *Service) error {
	v, ok := txt[TXTKeyVersion]
	if !ok || v == "" {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}
	if _, err := version.Parse(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTXTRecord, err)
	}

	path, ok := txt[TXTKeyAPIPath]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyAPIPath)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: api path %q", ErrInvalidTXTRecord, path)
	}

	svc.Version = v
	svc.APIPath = path
	svc.Backend = txt[TXTKeyBackend]
	svc.ID = txt[TXTKeyID]
	return nil
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return ErrEmptyInstanceName
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
