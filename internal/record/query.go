package record

import (
	"fmt"
	"strings"
)

// Natural key field names shared by adapters and the case cache.
const (
	FieldCaseType         = "case_type"
	FieldCaseRegNo        = "case_reg_no"
	FieldRegYear          = "rgyear"
	FieldStateCode        = "state_code"
	FieldDistCode         = "dist_code"
	FieldCourtComplexCode = "court_complex_code"
	FieldEstCode          = "est_code"
	FieldDiaryNo          = "diary_no"
	FieldDiaryYear        = "diary_year"
	FieldCNR              = "cnr"
)

// CourtKeyFields is the natural key of the e-Courts style portals.
var CourtKeyFields = []string{
	FieldCaseRegNo,
	FieldRegYear,
	FieldEstCode,
	FieldCaseType,
	FieldStateCode,
	FieldDistCode,
	FieldCourtComplexCode,
}

// CaseQuery identifies a case on one portal. Adapters only read the subset
// of fields that make up their natural key.
type CaseQuery struct {
	CaseType         string `json:"case_type" bson:"case_type"`
	CaseRegNo        string `json:"case_reg_no" bson:"case_reg_no"`
	RegYear          string `json:"rgyear" bson:"rgyear"`
	StateCode        string `json:"state_code" bson:"state_code"`
	DistCode         string `json:"dist_code" bson:"dist_code"`
	CourtComplexCode string `json:"court_complex_code" bson:"court_complex_code"`
	EstCode          string `json:"est_code" bson:"est_code"`
	DiaryNo          string `json:"diary_no,omitempty" bson:"diary_no,omitempty"`
	DiaryYear        string `json:"diary_year,omitempty" bson:"diary_year,omitempty"`
	CNR              string `json:"cnr,omitempty" bson:"cnr,omitempty"`
}

// Field returns the value of the named natural key field.
func (q CaseQuery) Field(name string) (string, bool) {
	switch name {
	case FieldCaseType:
		return q.CaseType, true
	case FieldCaseRegNo:
		return q.CaseRegNo, true
	case FieldRegYear:
		return q.RegYear, true
	case FieldStateCode:
		return q.StateCode, true
	case FieldDistCode:
		return q.DistCode, true
	case FieldCourtComplexCode:
		return q.CourtComplexCode, true
	case FieldEstCode:
		return q.EstCode, true
	case FieldDiaryNo:
		return q.DiaryNo, true
	case FieldDiaryYear:
		return q.DiaryYear, true
	case FieldCNR:
		return q.CNR, true
	}
	return "", false
}

// Key projects the query onto the given natural key fields, in order.
func (q CaseQuery) Key(fields []string) NaturalKey {
	key := make(NaturalKey, 0, len(fields))
	for _, name := range fields {
		value, _ := q.Field(name)
		key = append(key, KeyPart{Name: name, Value: value})
	}
	return key
}

// Require returns an error naming the first listed field that is empty.
func (q CaseQuery) Require(fields ...string) error {
	for _, name := range fields {
		value, known := q.Field(name)
		if !known {
			return fmt.Errorf("unknown field %s", name)
		}
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}

type KeyPart struct {
	Name  string
	Value string
}

// NaturalKey is an ordered set of field/value pairs identifying one case
// within a portal.
type NaturalKey []KeyPart

func (k NaturalKey) String() string {
	parts := make([]string, len(k))
	for i, p := range k {
		parts[i] = p.Name + "=" + p.Value
	}
	return strings.Join(parts, "|")
}

// Values returns the key values joined by sep, skipping empty values.
func (k NaturalKey) Values(sep string) string {
	var parts []string
	for _, p := range k {
		if p.Value != "" {
			parts = append(parts, p.Value)
		}
	}
	return strings.Join(parts, sep)
}
