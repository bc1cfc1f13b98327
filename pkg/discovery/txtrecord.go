package discovery

import (
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeServiceTXT creates the TXT records for a device.
func EncodeServiceTXT(info *ServiceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	txt[TXTKeyName] = truncate(info.Name)
	txt[TXTKeyVersion] = truncate(info.Version)

	if info.APIVersion != "" {
		txt[TXTKeyAPI] = info.APIVersion
	}
	path := info.Path
	if path == "" {
		path = DefaultPath
	}
	txt[TXTKeyPath] = truncate(path)

	return txt
}

// DecodeServiceTXT parses the TXT records of a device.
func DecodeServiceTXT(txt TXTRecordMap) (*ServiceInfo, error) {
	info := &ServiceInfo{}

	var ok bool
	info.Name, ok = txt[TXTKeyName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyName)
	}
	info.Version, ok = txt[TXTKeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyVersion)
	}

	info.APIVersion = txt[TXTKeyAPI]
	info.Path = txt[TXTKeyPath]
	if info.Path == "" {
		info.Path = DefaultPath
	}
	if !strings.HasPrefix(info.Path, "/") {
		return nil, fmt.Errorf("%w: path %q", ErrInvalidTXTRecord, info.Path)
	}

	return info, nil
}

func truncate(s string) string {
	if len(s) > MaxTXTValueLen {
		return s[:MaxTXTValueLen]
	}
	return s
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
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
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
