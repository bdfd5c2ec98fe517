package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Validate checks cfg and returns every violation found, joined and wrapped
// in ErrInvalidConfig.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.EntryPath == "" {
		errs = append(errs, fmt.Errorf("%w: entryPath", ErrMissingField))
	}
	if cfg.OutputFileName == "" {
		errs = append(errs, fmt.Errorf("%w: outputFileName", ErrMissingField))
	} else if filepath.IsAbs(cfg.OutputFileName) || strings.Contains(filepath.ToSlash(cfg.OutputFileName), "..") {
		errs = append(errs, fmt.Errorf("%w: outputFileName %q must stay inside outputDirectory", ErrInvalidPath, cfg.OutputFileName))
	}
	if cfg.OutputDirectory == "" {
		errs = append(errs, fmt.Errorf("%w: outputDirectory", ErrMissingField))
	}

	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		errs = append(errs, err)
	}

	for i, rule := range cfg.Rules {
		if err := validateRule(rule); err != nil {
			errs = append(errs, fmt.Errorf("rules[%d]: %w", i, err))
		}
	}

	if cfg.DevServer.Port < 1 || cfg.DevServer.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d (expected 1-65535)", ErrInvalidPort, cfg.DevServer.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func validateRule(rule Rule) error {
	var errs []error

	if rule.FilePattern == "" && rule.ExcludePattern == "" {
		errs = append(errs, fmt.Errorf("%w: filePattern or excludePattern is required", ErrInvalidPattern))
	}
	if rule.FilePattern != "" {
		if _, err := CompilePattern(rule.FilePattern); err != nil {
			errs = append(errs, fmt.Errorf("filePattern: %w", err))
		}
	}
	if rule.ExcludePattern != "" {
		if _, err := CompilePattern(rule.ExcludePattern); err != nil {
			errs = append(errs, fmt.Errorf("excludePattern: %w", err))
		}
	}

	if len(rule.Pipeline) == 0 {
		errs = append(errs, ErrEmptyPipeline)
	}
	for i, step := range rule.Pipeline {
		if strings.TrimSpace(step.Name) == "" {
			errs = append(errs, fmt.Errorf("%w: transformationPipeline[%d].name", ErrMissingField, i))
		}
	}

	return errors.Join(errs...)
}

// CompilePattern compiles a rule pattern. Both a bare expression (`\.css$`)
// and the delimited form (`/\.css$/i`) are accepted; the i, m and s flags
// carry over, g and u are ignored.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	expr := pattern

	if len(pattern) > 1 && pattern[0] == '/' {
		end := strings.LastIndex(pattern, "/")
		if end > 0 {
			body, flags := pattern[1:end], pattern[end+1:]
			var goFlags strings.Builder
			for _, f := range flags {
				switch f {
				case 'i', 'm', 's':
					goFlags.WriteRune(f)
				case 'g', 'u':
				default:
					return nil, fmt.Errorf("%w: unknown flag %q in %s", ErrInvalidPattern, f, pattern)
				}
			}
			expr = body
			if goFlags.Len() > 0 {
				expr = "(?" + goFlags.String() + ")" + body
			}
		}
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

// lintExtensions are the asset types checked by Lint.
var lintExtensions = []string{
	".css", ".less", ".scss", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
	".html", ".woff", ".woff2", ".ttf", ".eot", ".otf", ".json", ".txt",
}

// Lint reports rules that overlap on a common asset extension. Overlap is
// not an error: the first declared rule wins.
func Lint(cfg *Config) []string {
	var warnings []string

	for _, ext := range lintExtensions {
		sample := "module" + ext
		var matched []int
		for i, rule := range cfg.Rules {
			ok, err := ruleMatches(rule, sample)
			if err != nil {
				continue
			}
			if ok {
				matched = append(matched, i)
			}
		}
		if len(matched) > 1 {
			warnings = append(warnings,
				fmt.Sprintf("%s files match rules %v, rules[%d] wins", ext, matched, matched[0]))
		}
	}

	return warnings
}

func ruleMatches(rule Rule, path string) (bool, error) {
	if rule.FilePattern != "" {
		re, err := CompilePattern(rule.FilePattern)
		if err != nil {
			return false, err
		}
		if !re.MatchString(path) {
			return false, nil
		}
	}
	if rule.ExcludePattern != "" {
		re, err := CompilePattern(rule.ExcludePattern)
		if err != nil {
			return false, err
		}
		if re.MatchString(path) {
			return false, nil
		}
	}
	return rule.FilePattern != "" || rule.ExcludePattern != "", nil
}
