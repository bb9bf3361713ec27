// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify flags researchers working on health equity and
// climate health by scanning stored publication and grant titles for
// taxonomy keywords.
package classify

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Taxonomy groups.
const (
	GroupHealthEquity  = "health_equity"
	GroupClimateHealth = "climate_health"
	GroupIntersection  = "intersection"
)

// Classification methods recorded in a researcher's identified_via
// trail.
const (
	MethodInitialScan      = "initial_scan"
	MethodIntersectionScan = "intersection_scan"
)

// Keyword is a lowercase search term and the taxonomy group it
// belongs to. Terms match by substring, so a stem like
// "health disparit" covers "disparity" and "disparities" alike.
type Keyword struct {
	Term  string `json:"term" yaml:"term"`
	Group string `json:"group" yaml:"group"`
}

// DefaultKeywords returns the built-in taxonomy used by the initial
// scan.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{Term: "health equity", Group: GroupHealthEquity},
		{Term: "health disparit", Group: GroupHealthEquity},
		{Term: "healthcare access", Group: GroupHealthEquity},
		{Term: "healthcare inequ", Group: GroupHealthEquity},
		{Term: "racial disparit", Group: GroupHealthEquity},
		{Term: "ethnic disparit", Group: GroupHealthEquity},
		{Term: "minority health", Group: GroupHealthEquity},
		{Term: "underserved population", Group: GroupHealthEquity},
		{Term: "vulnerable population", Group: GroupHealthEquity},
		{Term: "social determinant", Group: GroupHealthEquity},
		{Term: "health inequalit", Group: GroupHealthEquity},
		{Term: "socioeconomic", Group: GroupHealthEquity},
		{Term: "rural health", Group: GroupHealthEquity},
		{Term: "urban health", Group: GroupHealthEquity},
		{Term: "low-income", Group: GroupHealthEquity},

		{Term: "climate change health", Group: GroupClimateHealth},
		{Term: "climate medicine", Group: GroupClimateHealth},
		{Term: "climate health", Group: GroupClimateHealth},
		{Term: "planetary health", Group: GroupClimateHealth},
		{Term: "environmental health", Group: GroupClimateHealth},
		{Term: "heat wave", Group: GroupClimateHealth},
		{Term: "heat stress", Group: GroupClimateHealth},
		{Term: "thermal stress", Group: GroupClimateHealth},
		{Term: "extreme weather", Group: GroupClimateHealth},
		{Term: "air pollution", Group: GroupClimateHealth},
		{Term: "vector-borne disease", Group: GroupClimateHealth},
		{Term: "disease migration", Group: GroupClimateHealth},
		{Term: "climate-sensitive disease", Group: GroupClimateHealth},
		{Term: "zoonotic disease", Group: GroupClimateHealth},
	}
}

// IntersectionKeywords returns the narrower taxonomy for the
// intersection scan, which targets work sitting at the joint of
// climate and equity.
func IntersectionKeywords() []Keyword {
	return []Keyword{
		{Term: "climate justice", Group: GroupIntersection},
		{Term: "environmental justice", Group: GroupIntersection},
		{Term: "climate equity", Group: GroupIntersection},
		{Term: "climate vulnerable", Group: GroupIntersection},
		{Term: "heat island effect health", Group: GroupIntersection},
		{Term: "pollution disparit", Group: GroupIntersection},
	}
}

// keywordFile is the YAML shape of a custom taxonomy: group names
// mapping to term lists.
type keywordFile struct {
	Groups map[string][]string `yaml:"groups"`
}

// LoadKeywordFile reads a custom taxonomy. Terms are trimmed,
// lowercased, and returned sorted by group then term; a file with no
// usable terms is an error.
func LoadKeywordFile(path string) ([]Keyword, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyword file: %w", err)
	}

	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parsing keyword file %s: %w", path, err)
	}

	var keywords []Keyword
	for group, terms := range kf.Groups {
		for _, term := range terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			keywords = append(keywords, Keyword{Term: term, Group: group})
		}
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keyword file %s contains no terms", path)
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].Group != keywords[j].Group {
			return keywords[i].Group < keywords[j].Group
		}
		return keywords[i].Term < keywords[j].Term
	})
	return keywords, nil
}

// WriteKeywordFile dumps a taxonomy as YAML so the built-in set can
// be edited and fed back through the keywords flag.
func WriteKeywordFile(path string, keywords []Keyword) error {
	kf := keywordFile{Groups: make(map[string][]string)}
	for _, k := range keywords {
		kf.Groups[k.Group] = append(kf.Groups[k.Group], k.Term)
	}

	data, err := yaml.Marshal(kf)
	if err != nil {
		return fmt.Errorf("marshaling keywords: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
