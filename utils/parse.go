package utils

import (
	"bufio"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	quotedTokenRegex = regexp.MustCompile(`"[^"]*"|\S+`)
	setLineRegex     = regexp.MustCompile(`^set -[la] ([a-zA-Z_]+)\s+(\S.+\S)`)
)

// SplitQuoted splits a line into whitespace-separated tokens, keeping
// double-quoted substrings as single tokens with the quotes stripped.
func SplitQuoted(input string) []string {
	substrings := quotedTokenRegex.FindAllString(input, -1)
	for i, s := range substrings {
		substrings[i] = strings.Trim(s, `"`)
	}
	return substrings
}

// ParseRangeStr expands a comma-separated range expression such as "3-7,8,10"
// into the ordered index list it covers. "a-b" is inclusive on both ends.
// With fix1Offset the indices are shifted from 1-based to 0-based.
func ParseRangeStr(rangeStr string, fix1Offset bool) ([]int, error) {
	offset := 0
	if fix1Offset {
		offset = 1
	}

	result := make([]int, 0)
	for _, part := range strings.Split(rangeStr, ",") {
		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			a, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, errors.Wrapf(err, "invalid range start in %q", part)
			}
			b, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, errors.Wrapf(err, "invalid range end in %q", part)
			}
			for i := a - offset; i <= b-offset; i++ {
				result = append(result, i)
			}
		} else {
			a, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, errors.Wrapf(err, "invalid index %q", part)
			}
			result = append(result, a-offset)
		}
	}
	return result, nil
}

// SubjectConfig is the parsed content of a subject list file.
type SubjectConfig struct {
	Subjects     []string
	ClassTokens  []string
	BroadClasses []int
	SelSet       []int
}

// ParseSubjectFile reads a fish-style subject file consisting of
// `set -l <name> <values...>` lines. The class tokens come from the
// db_prompts variable when method is "db", from cls_tokens otherwise.
// Broad classes default to 1 (human/animal) and the selection set defaults
// to all subjects; sel_set values are 1-based in the file, 0-based out.
func ParseSubjectFile(fPath, method string) (*SubjectConfig, error) {
	f, err := os.Open(fPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &SubjectConfig{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		mat := setLineRegex.FindStringSubmatch(line)
		if mat == nil {
			continue
		}
		varName := mat[1]
		substrings := SplitQuoted(mat[2])

		switch {
		case varName == "subjects":
			cfg.Subjects = substrings
		case varName == "db_prompts" && method == "db":
			cfg.ClassTokens = substrings
		case varName == "cls_tokens" && method != "db":
			cfg.ClassTokens = substrings
		case varName == "broad_classes":
			cfg.BroadClasses = make([]int, 0, len(substrings))
			for _, s := range substrings {
				v, err := strconv.Atoi(s)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid broad class %q", s)
				}
				cfg.BroadClasses = append(cfg.BroadClasses, v)
			}
		case varName == "sel_set":
			cfg.SelSet = make([]int, 0, len(substrings))
			for _, s := range substrings {
				v, err := strconv.Atoi(s)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid sel_set index %q", s)
				}
				cfg.SelSet = append(cfg.SelSet, v-1)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if cfg.Subjects == nil || cfg.ClassTokens == nil {
		return nil, errors.Errorf("subject file %s is missing subjects or class tokens for method %q", fPath, method)
	}

	if cfg.BroadClasses == nil {
		cfg.BroadClasses = make([]int, len(cfg.Subjects))
		for i := range cfg.BroadClasses {
			cfg.BroadClasses[i] = 1
		}
	}
	if cfg.SelSet == nil {
		cfg.SelSet = make([]int, len(cfg.Subjects))
		for i := range cfg.SelSet {
			cfg.SelSet[i] = i
		}
	}
	return cfg, nil
}

// FindFirstMatch returns the first list item containing searchTerm and
// matching the extraSig regular expression. An empty extraSig matches all.
func FindFirstMatch(list []string, searchTerm, extraSig string) (string, bool) {
	sig, err := regexp.Compile(extraSig)
	if err != nil {
		return "", false
	}
	for _, item := range list {
		if strings.Contains(item, searchTerm) && sig.MatchString(item) {
			return item, true
		}
	}
	return "", false
}
