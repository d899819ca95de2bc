package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Catalog file names inside the assets dir.
const (
	RulesFile     = "rules.yaml"
	RealmsFile    = "realms.yaml"
	TalentsFile   = "talents.yaml"
	EventsFile    = "events.yaml"
	ChildhoodFile = "childhood.yaml"
	FillersFile   = "fillers.yaml"
	TitlesFile    = "titles.yaml"
)

func loadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

// loadOptional is loadYAML that treats a missing file as empty.
func loadOptional(path string, out any) error {
	err := loadYAML(path, out)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// LoadAll reads every catalog under dir. rules, realms, events and titles are
// required; the rest may be absent.
func LoadAll(dir string) (*Catalog, error) {
	var rc RulesConfig
	var realms RealmsConfig
	var tc TalentsConfig
	var ec EventsConfig
	var cc ChildhoodConfig
	var fc FillersConfig
	var ttc TitlesConfig

	required := []struct {
		name string
		out  any
	}{
		{RulesFile, &rc},
		{RealmsFile, &realms},
		{EventsFile, &ec},
		{TitlesFile, &ttc},
	}
	for _, f := range required {
		if err := loadYAML(filepath.Join(dir, f.name), f.out); err != nil {
			return nil, fmt.Errorf("load %s: %w", f.name, err)
		}
	}
	optional := []struct {
		name string
		out  any
	}{
		{TalentsFile, &tc},
		{ChildhoodFile, &cc},
		{FillersFile, &fc},
	}
	for _, f := range optional {
		if err := loadOptional(filepath.Join(dir, f.name), f.out); err != nil {
			return nil, fmt.Errorf("load %s: %w", f.name, err)
		}
	}
	if len(realms.Realms) == 0 {
		return nil, fmt.Errorf("load %s: no realms", RealmsFile)
	}
	if len(ttc.Titles) == 0 {
		return nil, fmt.Errorf("load %s: no titles", TitlesFile)
	}

	return &Catalog{
		Rules:     rc,
		Realms:    realms.Realms,
		Talents:   tc.Talents,
		Events:    ec.Events,
		Childhood: cc,
		Fillers:   fc.Fillers,
		Titles:    ttc.Titles,
	}, nil
}
