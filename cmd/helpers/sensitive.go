package helpers

import "github.com/hashicorp/go-secure-stdlib/strutil"

// MaskValue stands in for secret values in banners and log output
const MaskValue = "***********"

// SensitiveStorageFields lists storage config keys whose values are
// never printed, even after @file references have been resolved.
var SensitiveStorageFields = []string{"password", "access_key", "secret_key"}

// SensitiveTokensFields lists tokens block keys treated the same way
var SensitiveTokensFields = []string{"instance_secret"}

// MaskConfigFields returns a copy of config with every sensitive value
// replaced by MaskValue
func MaskConfigFields(sensitiveFields []string, config map[string]string) map[string]string {
	masked := make(map[string]string, len(config))
	for k, v := range config {
		if strutil.StrListContains(sensitiveFields, k) {
			v = MaskValue
		}
		masked[k] = v
	}
	return masked
}

// MaskSingleValue masks one value when its field is sensitive
func MaskSingleValue(fieldName, value string, sensitiveFields []string) string {
	if strutil.StrListContains(sensitiveFields, fieldName) {
		return MaskValue
	}
	return value
}
