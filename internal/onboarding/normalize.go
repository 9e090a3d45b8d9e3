package onboarding

import (
	"strings"

	"missedcall_backend/platform/phone"
)

// NormalizeFields canonicalizes extracted fields server-side. The adapter's
// own normalization claims are never trusted for values that gate later
// logic: enumerations are re-asserted here, unknown keys and values that
// fail their enumeration are dropped.
func NormalizeFields(extracted map[string]string) map[string]string {
	if len(extracted) == 0 {
		return nil
	}

	out := make(map[string]string, len(extracted))
	for k, v := range extracted {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		switch k {
		case FieldBusinessType, FieldLocation:
			out[k] = strings.ToLower(v)
		case FieldBusinessName:
			out[k] = v
		case FieldOwnerPhone:
			out[k] = phone.NormalizeE164(v)
		case FieldNotifyPref:
			if pref := strings.ToUpper(v); pref == "SMS" || pref == "EMAIL" {
				out[k] = pref
			}
		case FieldConfirmLive:
			if strings.EqualFold(v, "YES") {
				out[k] = "YES"
			}
		case FieldPhoneType:
			if pt, ok := NormalizePhoneType(v); ok {
				out[k] = pt
			}
		case FieldFwdConfirm:
			if strings.EqualFold(v, "DONE") {
				out[k] = "DONE"
			}
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// NormalizePhoneType maps free-form phone descriptions onto the fixed
// enumeration the forwarding instructions key off.
func NormalizePhoneType(value string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(value))
	switch v {
	case PhoneTypeIphone, "IOS", "APPLE":
		return PhoneTypeIphone, true
	case PhoneTypeAndroid, "SAMSUNG", "GOOGLE", "PIXEL":
		return PhoneTypeAndroid, true
	case PhoneTypeLandline, "FIXED", "OFFICE":
		return PhoneTypeLandline, true
	default:
		return "", false
	}
}
