package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXTRecordMap holds TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeDeviceTXT builds the TXT records for a device advertisement.
func EncodeDeviceTXT(info DeviceInfo) TXTRecordMap {
	txt := make(TXTRecordMap)
	txt[TXTKeyDeviceID] = strconv.Itoa(int(info.DeviceID))
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	if info.Firmware != "" {
		txt[TXTKeyFirmware] = info.Firmware
	}
	return txt
}

// DecodeDeviceTXT parses device TXT records. The id key is required
// and must be a controller id in 1-255.
func DecodeDeviceTXT(txt TXTRecordMap) (DeviceInfo, error) {
	var info DeviceInfo

	idStr, ok := txt[TXTKeyDeviceID]
	if !ok {
		return info, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyDeviceID)
	}
	id, err := strconv.ParseUint(idStr, 10, 8)
	if err != nil {
		return info, fmt.Errorf("%w: device id %q", ErrInvalidTXTRecord, idStr)
	}
	if id == 0 {
		return info, fmt.Errorf("%w: device id must be at least 1", ErrInvalidTXTRecord)
	}

	info.DeviceID = uint8(id)
	info.Name = txt[TXTKeyName]
	info.Firmware = txt[TXTKeyFirmware]
	return info, nil
}

// TXTRecordsToStrings converts a record map to "key=value" strings
// for zeroconf.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	records := make([]string, 0, len(txt))
	for key, value := range txt {
		records = append(records, key+"="+value)
	}
	return records
}

// StringsToTXTRecords parses "key=value" strings into a record map.
// Entries without a separator are skipped.
func StringsToTXTRecords(records []string) TXTRecordMap {
	txt := make(TXTRecordMap, len(records))
	for _, record := range records {
		parts := strings.SplitN(record, "=", 2)
		if len(parts) != 2 {
			continue
		}
		txt[parts[0]] = parts[1]
	}
	return txt
}
