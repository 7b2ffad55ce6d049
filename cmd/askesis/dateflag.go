package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/askesis/askesis/internal/model"
)

// dateParser lazily builds the natural-language date parser used by every
// --since/--until style flag across the CLI (spec's exportimport/CLI
// domain-stack entry for github.com/olebedev/when).
var (
	dateParserOnce sync.Once
	dateParser     *when.Parser
)

func naturalLanguageParser() *when.Parser {
	dateParserOnce.Do(func() {
		dateParser = when.New(nil)
		dateParser.Add(en.All...)
		dateParser.Add(common.All...)
	})
	return dateParser
}

// parseNaturalDate turns a flag value like "today", "last monday", or a
// bare "2025-01-10" into a model.Date, feeding shouldHabitAppearOnDate-style
// queries the same normalized day-granular value regardless of input style.
func parseNaturalDate(raw string) (model.Date, error) {
	if _, err := model.Date(raw).Time(); err == nil {
		return model.Date(raw), nil
	}
	r, err := naturalLanguageParser().Parse(raw, time.Now())
	if err != nil {
		return "", fmt.Errorf("askesis: parse date %q: %w", raw, err)
	}
	if r == nil {
		return "", fmt.Errorf("askesis: could not understand date %q", raw)
	}
	return model.Today(r.Time), nil
}

func todayDate() model.Date {
	return model.Today(time.Now())
}
