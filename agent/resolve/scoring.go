// Package resolve holds the contact resolution and scoring engine: email
// inference from peer evidence, the source fallback cascade, and the fit
// scoring rubric. Everything here is a pure function over collected facts,
// so the same inputs always rank candidates the same way.
package resolve

import (
	"fmt"
	"math"
	"sort"
	"strings"

	contractx "github.com/hyomin-dev/leadscout/agent/contract"
)

// Rubric weights. Title and function carry the most, because a perfectly
// reachable contact in the wrong role is worthless.
const (
	maxTitlePoints      = 2.5
	maxFunctionPoints   = 2.5
	maxSeniorityPoints  = 2.0
	maxEmailPoints      = 1.5
	maxActivityPoints   = 1.5
	minFitScore         = 1.0
	maxFitScore         = 10.0
)

// Seniority buckets, highest first.
type Seniority int

const (
	SeniorityOther Seniority = iota
	SeniorityManager
	SeniorityDirector
	SeniorityVP
	SeniorityCLevel
)

func (s Seniority) String() string {
	switch s {
	case SeniorityCLevel:
		return "c-level"
	case SeniorityVP:
		return "vp"
	case SeniorityDirector:
		return "director"
	case SeniorityManager:
		return "manager"
	default:
		return "other"
	}
}

func (s Seniority) points() float64 {
	switch s {
	case SeniorityCLevel:
		return 2.0
	case SeniorityVP:
		return 1.5
	case SeniorityDirector:
		return 1.0
	case SeniorityManager:
		return 0.5
	default:
		return 0
	}
}

// DomainActivity is the company pipeline signal from trial/publication
// registries: actively running programs, stale ones, or nothing found.
type DomainActivity int

const (
	ActivityNone DomainActivity = iota
	ActivityPartial
	ActivityActive
)

func (a DomainActivity) points() float64 {
	switch a {
	case ActivityActive:
		return maxActivityPoints
	case ActivityPartial:
		return maxActivityPoints / 2
	default:
		return 0
	}
}

// Titles come back from sources in every abbreviation people use on
// LinkedIn. Expand before matching.
var titleExpansions = map[string]string{
	"vp":    "vice president",
	"svp":   "senior vice president",
	"evp":   "executive vice president",
	"r&d":   "research and development",
	"bd":    "business development",
	"cso":   "chief scientific officer",
	"cmo":   "chief medical officer",
	"cto":   "chief technology officer",
	"cbo":   "chief business officer",
	"dir":   "director",
	"sr":    "senior",
	"assoc": "associate",
	"mgr":   "manager",
	"hd":    "head",
}

// Departments that never own a partnership or purchasing decision for the
// products this pipeline researches.
var excludedDepartments = []string{
	"finance", "accounting", "legal", "compliance", "hr", "human resources",
	"recruiting", "talent acquisition", "payroll", "facilities", "it support",
}

// Filler words carrying no function signal.
var stopWords = map[string]struct{}{
	"of": {}, "and": {}, "the": {}, "for": {}, "head": {}, "chief": {},
	"officer": {}, "vice": {}, "president": {}, "senior": {}, "executive": {},
	"director": {}, "manager": {}, "global": {}, "associate": {},
}

// NormalizeTitle lowercases a job title and expands common abbreviations.
func NormalizeTitle(title string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(title)))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:()")
		if expanded, ok := titleExpansions[f]; ok {
			out = append(out, strings.Fields(expanded)...)
			continue
		}
		if f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// DetectSeniority buckets a raw title.
func DetectSeniority(title string) Seniority {
	t := " " + NormalizeTitle(title) + " "
	switch {
	case strings.Contains(t, " chief "),
		strings.Contains(t, " president ") && !strings.Contains(t, " vice president "):
		return SeniorityCLevel
	case strings.Contains(t, " vice president "):
		return SeniorityVP
	case strings.Contains(t, " director "):
		return SeniorityDirector
	case strings.Contains(t, " manager ") || strings.Contains(t, " head "):
		return SeniorityManager
	default:
		return SeniorityOther
	}
}

// IsExcludedDepartment reports whether a department or title belongs to a
// back-office function outside the outreach audience.
func IsExcludedDepartment(departmentOrTitle string) bool {
	t := strings.ToLower(departmentOrTitle)
	for _, excluded := range excludedDepartments {
		if strings.Contains(t, excluded) {
			return true
		}
	}
	return false
}

// IsJunkName rejects placeholder names that sources emit instead of a
// person: "Unknown", "[Processing]", "TBD" and friends.
func IsJunkName(name string) bool {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" || strings.HasPrefix(n, "[") {
		return true
	}
	switch n {
	case "unknown", "n/a", "n-a", "none", "tbd":
		return true
	}
	return strings.Contains(n, "verification") || strings.Contains(n, "processing")
}

// ScoreToConfidence maps a Hunter deliverability score (0-100) onto our
// confidence ladder.
func ScoreToConfidence(score int) contractx.ConfidenceLevel {
	switch {
	case score >= 90:
		return contractx.ConfidenceVerified
	case score >= 70:
		return contractx.ConfidenceHigh
	case score >= 40:
		return contractx.ConfidenceMedium
	default:
		return contractx.ConfidenceLow
	}
}

// ScoreInput is one candidate plus the request's targeting criteria.
type ScoreInput struct {
	Title           string
	Department      string
	TargetTitles    []string
	EmailConfidence contractx.ConfidenceLevel
	Activity        DomainActivity
}

// Score applies the fit rubric and returns a score in [1.0, 10.0] with one
// decimal place, plus a short reason naming the dominant criteria.
func Score(in ScoreInput) (float64, string) {
	var reasons []string

	titlePts, matched := titleRelevance(in.Title, in.TargetTitles)
	if matched != "" {
		reasons = append(reasons, fmt.Sprintf("title matches %q", matched))
	}

	var functionPts float64
	if IsExcludedDepartment(in.Department) || IsExcludedDepartment(in.Title) {
		reasons = append(reasons, "back-office function")
	} else {
		functionPts = functionRelevance(in.Title, in.Department, in.TargetTitles)
		if functionPts >= maxFunctionPoints/2 {
			reasons = append(reasons, "function aligned")
		}
	}

	seniority := DetectSeniority(in.Title)
	if seniority >= SeniorityVP {
		reasons = append(reasons, seniority.String()+" seniority")
	}

	if in.EmailConfidence.Rank() >= contractx.ConfidenceHigh.Rank() {
		reasons = append(reasons, string(in.EmailConfidence)+" email")
	}
	if in.Activity == ActivityActive {
		reasons = append(reasons, "active pipeline")
	}

	total := titlePts + functionPts + seniority.points() +
		emailPoints(in.EmailConfidence) + in.Activity.points()
	total = math.Round(math.Min(math.Max(total, minFitScore), maxFitScore)*10) / 10

	if len(reasons) == 0 {
		reasons = append(reasons, "weak fit against target profile")
	}
	return total, strings.Join(reasons, "; ")
}

func emailPoints(c contractx.ConfidenceLevel) float64 {
	switch c {
	case contractx.ConfidenceVerified:
		return maxEmailPoints
	case contractx.ConfidenceHigh:
		return 1.0
	case contractx.ConfidenceMedium:
		return 0.5
	case contractx.ConfidenceLow:
		return 0.25
	default:
		return 0
	}
}

// titleRelevance finds the best keyword overlap between the candidate's
// title and any target title. Returns the points and the target matched.
func titleRelevance(title string, targets []string) (float64, string) {
	titleTokens := tokenSet(NormalizeTitle(title))
	if len(titleTokens) == 0 {
		return 0, ""
	}

	var bestRatio float64
	var bestTarget string
	for _, target := range targets {
		normalized := NormalizeTitle(target)
		targetTokens := tokenSet(normalized)
		if len(targetTokens) == 0 {
			continue
		}
		hits := 0
		for tok := range targetTokens {
			if _, ok := titleTokens[tok]; ok {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(targetTokens))
		if ratio > bestRatio || (ratio == bestRatio && normalized < NormalizeTitle(bestTarget)) {
			bestRatio, bestTarget = ratio, target
		}
	}
	if bestRatio == 0 {
		return 0, ""
	}
	return maxTitlePoints * bestRatio, bestTarget
}

// functionRelevance compares the function keywords of the targets (seniority
// words stripped) against the candidate's title and department.
func functionRelevance(title, department string, targets []string) float64 {
	functions := map[string]struct{}{}
	for _, target := range targets {
		for tok := range tokenSet(NormalizeTitle(target)) {
			if _, stop := stopWords[tok]; !stop {
				functions[tok] = struct{}{}
			}
		}
	}
	if len(functions) == 0 {
		return 0
	}

	haystack := tokenSet(NormalizeTitle(title + " " + department))
	hits := 0
	for tok := range functions {
		if _, ok := haystack[tok]; ok {
			hits++
		}
	}
	return maxFunctionPoints * float64(hits) / float64(len(functions))
}

func tokenSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// RankContacts orders candidates by fit score descending, breaking ties by
// seniority then name, so rankings are reproducible run to run.
func RankContacts(contacts []contractx.Contact) {
	sort.SliceStable(contacts, func(i, j int) bool {
		if contacts[i].FitScore != contacts[j].FitScore {
			return contacts[i].FitScore > contacts[j].FitScore
		}
		si, sj := DetectSeniority(contacts[i].Title), DetectSeniority(contacts[j].Title)
		if si != sj {
			return si > sj
		}
		return contacts[i].ContactName < contacts[j].ContactName
	})
}
