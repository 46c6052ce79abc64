// Package record defines the normalized case record every portal adapter
// converges to.
package record

import (
	"sort"
	"strings"

	"github.com/JustJay7/court-case-aggregator/internal/dates"
)

// InputAutomatic tags machine-derived history and transfer entries.
const InputAutomatic = "automatic"

// Canonical status field names accepted by Case.Apply.
const (
	CaseTypeName        = "CaseType"
	FilingNumber        = "FilingNumber"
	FilingDate          = "FilingDate"
	RegistrationNumber  = "RegistrationNumber"
	RegistrationDate    = "RegistrationDate"
	CNRNumber           = "CNRNumber"
	FirstHearingDate    = "FirstHearingDate"
	NextHearingDate     = "NextHearingDate"
	DecisionDate        = "DecisionDate"
	CaseStatus          = "CaseStatus"
	NatureofDisposal    = "NatureofDisposal"
	CourtNumberandJudge = "CourtNumberandJudge"
)

// Case is the normalized case record. Nullable scalars are pointers so that
// absent values serialize as null instead of disappearing.
type Case struct {
	ID string `json:"_id,omitempty" bson:"-"`

	CaseQuery `bson:",inline"`

	CourtType string  `json:"courtType" bson:"courtType"`
	CaseNo    *string `json:"case_no" bson:"case_no"`
	CINO      *string `json:"cino" bson:"cino"`
	CourtCode *string `json:"court_code" bson:"court_code"`

	CaseTypeName        *string `json:"CaseType" bson:"CaseType"`
	FilingNumber        *string `json:"FilingNumber" bson:"FilingNumber"`
	FilingDate          *string `json:"FilingDate" bson:"FilingDate"`
	RegistrationNumber  *string `json:"RegistrationNumber" bson:"RegistrationNumber"`
	RegistrationDate    *string `json:"RegistrationDate" bson:"RegistrationDate"`
	CNRNumber           *string `json:"CNRNumber" bson:"CNRNumber"`
	FirstHearingDate    *string `json:"FirstHearingDate" bson:"FirstHearingDate"`
	NextHearingDate     *string `json:"NextHearingDate" bson:"NextHearingDate"`
	DecisionDate        *string `json:"DecisionDate" bson:"DecisionDate"`
	CaseStatus          *string `json:"CaseStatus" bson:"CaseStatus"`
	NatureofDisposal    *string `json:"NatureofDisposal" bson:"NatureofDisposal"`
	CourtNumberandJudge *string `json:"CourtNumberandJudge" bson:"CourtNumberandJudge"`

	Petitioners []string `json:"petitioner_and_advocate" bson:"petitioner_and_advocate"`
	Respondents []string `json:"respondent_and_advocate" bson:"respondent_and_advocate"`

	Acts        ActsAndSection   `json:"actsandSection" bson:"actsandSection"`
	FIR         FIRDetails       `json:"fir_details" bson:"fir_details"`
	Category    CategoryDetails  `json:"category_details" bson:"category_details"`
	Subordinate SubordinateCourt `json:"subordinate_court_information" bson:"subordinate_court_information"`

	History   []HistoryEntry `json:"case_history" bson:"case_history"`
	Transfers []Transfer     `json:"case_transfer" bson:"case_transfer"`
	Orders    []Order        `json:"orders" bson:"orders"`
}

type ActsAndSection struct {
	Acts    *string `json:"acts" bson:"acts"`
	Section *string `json:"section" bson:"section"`
}

type FIRDetails struct {
	PoliceStation *string `json:"PoliceStation" bson:"PoliceStation"`
	FIRNumber     *string `json:"FIRNumber" bson:"FIRNumber"`
	Year          *string `json:"Year" bson:"Year"`
}

type CategoryDetails struct {
	Category    *string `json:"Category" bson:"Category"`
	SubCategory *string `json:"SubCategory" bson:"SubCategory"`
}

type SubordinateCourt struct {
	CourtNumberAndName *string `json:"CourtNumberAndName" bson:"CourtNumberAndName"`
	CaseNumberAndYear  *string `json:"CaseNumberAndYear" bson:"CaseNumberAndYear"`
	DecisionDate       *string `json:"DecisionDate" bson:"DecisionDate"`
}

type HistoryEntry struct {
	CauseListType  *string `json:"causeListType" bson:"causeListType"`
	Judge          *string `json:"judge" bson:"judge"`
	BusinessOnDate string  `json:"businessOnDate" bson:"businessOnDate"`
	HearingDate    string  `json:"hearingDate" bson:"hearingDate"`
	Purpose        string  `json:"purpose" bson:"purpose"`
	InputType      string  `json:"inputType" bson:"inputType"`
	LawyerRemark   *string `json:"lawyerRemark" bson:"lawyerRemark"`
}

type Transfer struct {
	RegistrationNumber string  `json:"registrationNumber" bson:"registrationNumber"`
	TransferDate       string  `json:"transferDate" bson:"transferDate"`
	FromCourt          string  `json:"fromCourt" bson:"fromCourt"`
	ToCourt            string  `json:"toCourt" bson:"toCourt"`
	InputType          string  `json:"inputType" bson:"inputType"`
	LawyerRemark       *string `json:"lawyerRemark" bson:"lawyerRemark"`
}

type Order struct {
	OrderNumber string  `json:"order_number" bson:"order_number"`
	OrderDate   string  `json:"order_date" bson:"order_date"`
	OrderLink   *string `json:"order_link" bson:"order_link"`
}

// New returns an empty record for the given portal.
func New(courtType string) *Case {
	return &Case{CourtType: courtType}
}

// Str returns a pointer to the trimmed value, or nil when it is empty.
func Str(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to value or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Apply copies canonical status fields from an extracted label map into the
// record. Unknown names are ignored; date fields are reformatted.
func (c *Case) Apply(fields map[string]string) {
	for name, value := range fields {
		switch name {
		case CaseTypeName:
			c.CaseTypeName = Str(value)
		case FilingNumber:
			c.FilingNumber = Str(value)
		case FilingDate:
			c.FilingDate = Str(dates.Reformat(value))
		case RegistrationNumber:
			c.RegistrationNumber = Str(value)
		case RegistrationDate:
			c.RegistrationDate = Str(dates.Reformat(value))
		case CNRNumber:
			c.CNRNumber = Str(value)
		case FirstHearingDate:
			c.FirstHearingDate = Str(dates.Reformat(value))
		case NextHearingDate:
			c.NextHearingDate = Str(dates.Reformat(value))
		case DecisionDate:
			c.DecisionDate = Str(dates.Reformat(value))
		case CaseStatus:
			c.CaseStatus = Str(value)
		case NatureofDisposal:
			c.NatureofDisposal = Str(value)
		case CourtNumberandJudge:
			c.CourtNumberandJudge = Str(value)
		}
	}
}

// AddHistory appends a hearing event unless one with the same business-on
// date is already present. It reports whether the entry was added.
func (c *Case) AddHistory(e HistoryEntry) bool {
	for _, existing := range c.History {
		if existing.BusinessOnDate == e.BusinessOnDate {
			return false
		}
	}
	if e.InputType == "" {
		e.InputType = InputAutomatic
	}
	c.History = append(c.History, e)
	return true
}

// Normalize enforces the record invariants: unique business-on dates,
// chronological history when every entry carries a parseable date, and
// non-nil sequences.
func (c *Case) Normalize() {
	history := c.History
	c.History = make([]HistoryEntry, 0, len(history))
	for _, e := range history {
		c.AddHistory(e)
	}
	sortHistory(c.History)

	if c.Petitioners == nil {
		c.Petitioners = []string{}
	}
	if c.Respondents == nil {
		c.Respondents = []string{}
	}
	if c.Transfers == nil {
		c.Transfers = []Transfer{}
	}
	if c.Orders == nil {
		c.Orders = []Order{}
	}
}

func sortHistory(history []HistoryEntry) {
	keys := make([]int64, len(history))
	for i, e := range history {
		t, ok := dates.Parse(e.BusinessOnDate)
		if !ok {
			t, ok = dates.Parse(e.HearingDate)
		}
		if !ok {
			return
		}
		keys[i] = t.Unix()
	}

	idx := make([]int, len(history))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	sorted := make([]HistoryEntry, len(history))
	for i, j := range idx {
		sorted[i] = history[j]
	}
	copy(history, sorted)
}

// PartyQuery is a party-name search on a portal that supports it.
type PartyQuery struct {
	PartyName        string `json:"petres_name"`
	Year             string `json:"rgyearP"`
	CaseStatus       string `json:"case_status"`
	StateCode        string `json:"state_code"`
	DistCode         string `json:"dist_code"`
	CourtComplexCode string `json:"court_complex_code"`
	EstCode          string `json:"est_code"`
	CourtType        string `json:"courtType"`
}

// Candidate is one case returned by a party-name search.
type Candidate struct {
	CaseNo           string  `json:"case_no"`
	CINO             string  `json:"cino"`
	CourtCode        *string `json:"court_code"`
	StateCode        *string `json:"state_code"`
	DistCode         *string `json:"dist_code"`
	CourtComplexCode *string `json:"court_complex_code"`
	EstCode          *string `json:"est_code"`
	RegYear          string  `json:"rgyear"`
	CaseNumber       string  `json:"case_number"`
	PartyDetails     string  `json:"party_details"`
	CourtType        *string `json:"courtType"`
}
