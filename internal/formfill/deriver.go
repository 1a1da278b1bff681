package formfill

import (
	"fmt"
	"strings"
	"time"
)

// Field keys read or written while deriving a record.
const (
	KeyJoinType = "join_type"

	KeyApplyYear  = "apply_date_year"
	KeyApplyMonth = "apply_date_month"
	KeyApplyDay   = "apply_date_day"

	KeyAddrRoad   = "addr_road"
	KeyAddrDetail = "addr_detail"
	KeyAddr       = "addr"

	KeyIDDocType         = "id_doc_type"
	KeyPassportInfoPrint = "passport_info_print"

	KeySimType       = "sim_type"
	KeyESIMInfoPrint = "esim_info_print"
)

const (
	joinTypePort      = "port"
	idDocTypePassport = "passport"
	simTypeESIM       = "esim"

	flagOn = "1"
)

// portOnlyKeys only apply to number portability sign-ups.
var portOnlyKeys = []string{"prev_carrier", "mnp_pay_type", "port_number", "mvno_name"}

// portFlagKeys drive the number portability checkboxes.
var portFlagKeys = []string{"mnp1", "mnp2", "mnp3"}

type labeledField struct {
	key   string
	label string
}

var passportFields = []labeledField{
	{"passport_no", "여권번호"},
	{"nationality", "국적"},
	{"passport_birth", "생년월일"},
	{"stay_status", "체류자격"},
	{"stay_expiry", "체류기간 만료일"},
}

var esimFields = []labeledField{
	{"esim_model", "모델명"},
	{"imei1", "imei"},
	{"imei2", "imei2"},
	{"eid", "EID"},
}

// Derive returns the record that is actually printed. It clears fields that do
// not apply to the selected variant, sets dependent checkbox flags and builds
// composite print fields. in is not modified.
func Derive(in Record, now time.Time) Record {
	out := in.Clone()

	flag := ""
	if normalize(out[KeyJoinType]) == joinTypePort {
		flag = flagOn
	} else {
		for _, k := range portOnlyKeys {
			out[k] = ""
		}
	}
	for _, k := range portFlagKeys {
		out[k] = flag
	}

	out[KeyApplyYear] = fmt.Sprintf("%04d", now.Year())
	out[KeyApplyMonth] = fmt.Sprintf("%02d", int(now.Month()))
	out[KeyApplyDay] = fmt.Sprintf("%02d", now.Day())

	out[KeyAddr] = joinAddress(out[KeyAddrRoad], out[KeyAddrDetail])

	if normalize(out[KeyIDDocType]) == idDocTypePassport {
		out[KeyPassportInfoPrint] = passportBlock(out)
	} else {
		clearGroup(out, KeyPassportInfoPrint, passportFields)
	}

	if normalize(out[KeySimType]) == simTypeESIM {
		out[KeyESIMInfoPrint] = esimBlock(out)
	} else {
		clearGroup(out, KeyESIMInfoPrint, esimFields)
	}

	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func joinAddress(road, detail string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{road, detail} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// passportBlock prints one line per filled-in field.
func passportBlock(rec Record) string {
	var lines []string
	for _, f := range passportFields {
		if v := strings.TrimSpace(rec[f.key]); v != "" {
			lines = append(lines, fmt.Sprintf("-%s : %s", f.label, v))
		}
	}
	return strings.Join(lines, "\n")
}

// esimBlock always prints all four lines once any of them is filled in.
func esimBlock(rec Record) string {
	values := make([]string, len(esimFields))
	filled := false
	for i, f := range esimFields {
		values[i] = strings.TrimSpace(rec[f.key])
		if values[i] != "" {
			filled = true
		}
	}
	if !filled {
		return ""
	}
	lines := make([]string, len(esimFields))
	for i, f := range esimFields {
		lines[i] = fmt.Sprintf("-%s: %s", f.label, values[i])
	}
	return strings.Join(lines, "\n")
}

func clearGroup(rec Record, printKey string, fields []labeledField) {
	rec[printKey] = ""
	for _, f := range fields {
		rec[f.key] = ""
	}
}
