package classifier

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// UnspecifiedCondition is used when a query names no known condition.
const UnspecifiedCondition = "unspecified condition"

const trialLocation = "United States"

var (
	agePattern       = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(years|yrs)?\s*(old)?`)
	conditionPattern = regexp.MustCompile(`(?i)(breast cancer|cancer|diabetes|HIV|Alzheimer's|Parkinson's)`)
)

// conditionTerms maps a lowercase condition to the platform search term.
var conditionTerms = map[string]string{
	"cancer":    "CANCER",
	"diabetes":  "DIABETES",
	"alzheimer": "ALZHEIMER'S DISEASE",
	"leukemia":  "LEUKEMIA",
	"hiv":       "HIV",
	"covid":     "COVID-19",
}

// queryParams maps search fields to the dashboard's q-number parameters.
var queryParams = map[string]string{
	"search_query":           "q1",
	"age_from":               "q2",
	"age_to":                 "q3",
	"gender":                 "q4",
	"race":                   "q5",
	"ethnicity":              "q6",
	"intervention_type":      "q7",
	"location":               "q8",
	"study_posted_from_year": "q9",
	"study_posted_to_year":   "q10",
	"allocation":             "q11",
	"sponsor_type":           "q12",
	"sponsor":                "q13",
	"show_only_results":      "q14",
	"phase":                  "q20",
	"status_of_study":        "q21",
}

// TrialQuery is what could be extracted from a clinical trial question.
type TrialQuery struct {
	Age       int // 0 when absent
	Condition string
}

// ParseTrialQuery extracts an age and a condition from text.
func ParseTrialQuery(text string) TrialQuery {
	q := TrialQuery{Condition: UnspecifiedCondition}
	if m := agePattern.FindStringSubmatch(text); m != nil {
		q.Age, _ = strconv.Atoi(m[1])
	}
	if m := conditionPattern.FindStringSubmatch(text); m != nil {
		q.Condition = m[1]
	}
	return q
}

// AgeRange returns the search bounds for age.
func AgeRange(age int) (from, to int) {
	switch {
	case age < 18:
		return 0, 17
	case age >= 65:
		return 65, 100
	default:
		return max(0, age-5), age + 5
	}
}

// Fields returns the named search fields for q.
func (q TrialQuery) Fields() map[string]string {
	fields := map[string]string{"location": trialLocation}
	if term := conditionTerm(q.Condition); term != "" {
		fields["search_query"] = term
	}
	if q.Age > 0 {
		from, to := AgeRange(q.Age)
		fields["age_from"] = strconv.Itoa(from)
		fields["age_to"] = strconv.Itoa(to)
	}
	return fields
}

// conditionTerm finds the search term whose key occurs in condition, so
// "breast cancer" searches CANCER and "Alzheimer's" the full disease name.
func conditionTerm(condition string) string {
	c := strings.ToLower(condition)
	for key, term := range conditionTerms {
		if strings.Contains(c, key) {
			return term
		}
	}
	return ""
}

// TrialLink builds a dashboard search link for the question in text.
func TrialLink(platformURL, text string) string {
	return Link(platformURL, ParseTrialQuery(text).Fields())
}

// Link encodes named fields as q-number parameters on the dashboard URL.
// Unknown field names are dropped.
func Link(platformURL string, fields map[string]string) string {
	values := url.Values{}
	for name, v := range fields {
		if param, ok := queryParams[name]; ok {
			values.Set(param, v)
		}
	}
	return strings.TrimRight(platformURL, "/") + "/dashboard/details?" + values.Encode()
}
