package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Domain is a pipeline lane: one data source with its own cleaning rule and
// warehouse table.
type Domain string

const (
	DomainSales     Domain = "sales"
	DomainMarketing Domain = "marketing"
	DomainScraping  Domain = "scraping"
)

// Domains lists every domain in run order.
var Domains = []Domain{DomainSales, DomainMarketing, DomainScraping}

// Stage is a step of a domain lane.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageLoad      Stage = "load"
)

// Stages lists the stages in dependency order.
var Stages = []Stage{StageExtract, StageTransform, StageLoad}

// LoadMode is how a cleaned dataset is written into its warehouse table.
type LoadMode string

const (
	LoadAppend LoadMode = "append"
	LoadUpsert LoadMode = "upsert"
)

// TaskKey identifies a task: one stage of one domain.
type TaskKey struct {
	Domain Domain `json:"domain"`
	Stage  Stage  `json:"stage"`
}

func (k TaskKey) String() string {
	return string(k.Domain) + "/" + string(k.Stage)
}

// Upstream returns the task this task consumes. Extract tasks have none.
func (k TaskKey) Upstream() (TaskKey, bool) {
	switch k.Stage {
	case StageTransform:
		return TaskKey{Domain: k.Domain, Stage: StageExtract}, true
	case StageLoad:
		return TaskKey{Domain: k.Domain, Stage: StageTransform}, true
	default:
		return TaskKey{}, false
	}
}

// ParseDomain validates a domain name.
func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Domains {
		if d == known {
			return d, nil
		}
	}
	return "", eris.Errorf("unknown domain: %q", s)
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Stages {
		if st == known {
			return st, nil
		}
	}
	return "", eris.Errorf("unknown stage: %q", s)
}

// LoadTargets returns the terminal load task of every domain.
func LoadTargets() []TaskKey {
	targets := make([]TaskKey, 0, len(Domains))
	for _, d := range Domains {
		targets = append(targets, TaskKey{Domain: d, Stage: StageLoad})
	}
	return targets
}
