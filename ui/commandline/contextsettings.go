// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/pkg/errors"
)

// ParseContextSettings parses settings like "epochs=200;hidden=32" (typically the contents of the -set
// flag) into the parameters of ctx, and returns the list of parameters set.
//
// Every parameter must already have a default value in the root scope of ctx: its type is used to parse
// the new value. A scope can be given with an absolute path, e.g. "/gcn/hessian/dropout=0.2".
// Underscores are ignored in integers, so 1_000 = 1000.
//
// An entry "file:<path>" reads settings from a file, one or more per line, with "#" starting a comment
// line.
func ParseContextSettings(ctx *context.Context, settings string) (paramsSet []string, err error) {
	for _, setting := range strings.Split(settings, ";") {
		setting = strings.TrimSpace(setting)
		if setting == "" {
			continue
		}
		if filePath, found := strings.CutPrefix(setting, "file:"); found {
			paramsSet, err = parseSettingsFile(ctx, filePath, paramsSet)
		} else {
			paramsSet, err = parseContextSetting(ctx, setting, paramsSet)
		}
		if err != nil {
			return paramsSet, err
		}
	}
	return paramsSet, nil
}

func parseSettingsFile(ctx *context.Context, filePath string, paramsSet []string) ([]string, error) {
	if rest, found := strings.CutPrefix(filePath, "~/"); found {
		home, err := os.UserHomeDir()
		if err != nil {
			return paramsSet, errors.Wrapf(err, "expanding %q", filePath)
		}
		filePath = filepath.Join(home, rest)
	}
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return paramsSet, errors.Wrapf(err, "failed to read settings from file %q", filePath)
	}
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, setting := range strings.Split(line, ";") {
			if setting = strings.TrimSpace(setting); setting == "" {
				continue
			}
			paramsSet, err = parseContextSetting(ctx, setting, paramsSet)
			if err != nil {
				return paramsSet, err
			}
		}
	}
	return paramsSet, nil
}

func parseContextSetting(ctx *context.Context, setting string, paramsSet []string) ([]string, error) {
	paramPath, valueStr, found := strings.Cut(setting, "=")
	if !found || strings.Contains(valueStr, "=") {
		return paramsSet, errors.Errorf("can't parse setting %q: the format is \"<param>=<value>\"", setting)
	}
	paramScope, paramName := context.SplitScope(paramPath)
	if strings.Contains(paramName, context.ScopeSeparator) {
		return paramsSet, errors.Errorf("can't set parameter %q: scopes must be absolute (start with %q)",
			paramPath, context.ScopeSeparator)
	}
	defaultValue, found := ctx.GetParam(paramName)
	if !found {
		return paramsSet, errors.Errorf("unknown parameter %q: it has no default value in the root scope", paramName)
	}
	value, err := ParseValueAs(defaultValue, valueStr)
	if err != nil {
		return paramsSet, errors.WithMessagef(err, "parameter %q", paramPath)
	}
	ctxInScope := ctx
	if paramScope != "" {
		ctxInScope = ctx.InAbsPath(paramScope)
	}
	ctxInScope.SetParam(paramName, value)
	return append(paramsSet, paramPath), nil
}

// ParseValueAs parses valueStr into a value of the same type as like.
func ParseValueAs(like any, valueStr string) (value any, err error) {
	valueStr = strings.TrimSpace(valueStr)
	intStr := strings.ReplaceAll(valueStr, "_", "")
	switch like.(type) {
	case int:
		value, err = strconv.Atoi(intStr)
	case int32:
		var v int64
		v, err = strconv.ParseInt(intStr, 10, 32)
		value = int32(v)
	case int64:
		value, err = strconv.ParseInt(intStr, 10, 64)
	case float64:
		value, err = strconv.ParseFloat(valueStr, 64)
	case float32:
		var v float64
		v, err = strconv.ParseFloat(valueStr, 32)
		value = float32(v)
	case bool:
		value, err = strconv.ParseBool(valueStr)
	case string:
		value = valueStr
	case []string:
		value = strings.Split(valueStr, ",")
	case []int:
		list := make([]int, 0)
		for _, part := range strings.Split(valueStr, ",") {
			var v int
			if v, err = strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(part), "_", "")); err != nil {
				break
			}
			list = append(list, v)
		}
		value = list
	case []float64:
		list := make([]float64, 0)
		for _, part := range strings.Split(valueStr, ",") {
			var v float64
			if v, err = strconv.ParseFloat(strings.TrimSpace(part), 64); err != nil {
				break
			}
			list = append(list, v)
		}
		value = list
	default:
		return nil, errors.Errorf("don't know how to parse values of type %T", like)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %q as %T", valueStr, like)
	}
	return value, nil
}

// CreateContextSettingsFlag creates a string flag (named "set" if flagName is empty) whose usage lists the
// parameters of ctx with their default values. It must be called before flag.Parse.
func CreateContextSettingsFlag(ctx *context.Context, flagName string) *string {
	if flagName == "" {
		flagName = "set"
	}
	parts := []string{
		`Hyperparameters as a list of "param=value" separated by ";". ` +
			`Scoped settings use absolute paths, e.g. "/gcn/hessian/dropout=0.2". ` +
			`An entry "file:<path>" reads settings from a file, one per line. Parameters:`,
	}
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			parts = append(parts, fmt.Sprintf("  %q: default is %v", key, value))
		}
	})
	return flag.String(flagName, "", strings.Join(parts, "\n"))
}

// SprintContextSettings returns all hyperparameters of ctx, one per line.
func SprintContextSettings(ctx *context.Context) string {
	var parts []string
	ctx.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			scope = ""
		}
		parts = append(parts, fmt.Sprintf("\t\"%s/%s\": (%T) %v", scope, key, value, value))
	})
	return strings.Join(parts, "\n")
}

// SprintModifiedContextSettings returns the current value of the parameters in paramsSet, one per line.
func SprintModifiedContextSettings(ctx *context.Context, paramsSet []string) string {
	paramsSet = slices.Clone(paramsSet)
	slices.Sort(paramsSet)
	paramsSet = slices.Compact(paramsSet)
	var parts []string
	for _, paramPath := range paramsSet {
		paramScope, paramName := context.SplitScope(paramPath)
		if paramScope == "" {
			paramScope = context.RootScope
		}
		if value, found := ctx.InAbsPath(paramScope).GetParam(paramName); found {
			parts = append(parts, fmt.Sprintf("\t%q: (%T) %v", paramPath, value, value))
		}
	}
	return strings.Join(parts, "\n")
}
