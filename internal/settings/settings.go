// Copyright 2026 The HessianGCN Authors. SPDX-License-Identifier: Apache-2.0

// Package settings loads hyperparameters from YAML files into a context.
//
// The file is a map from parameter name to value. Nested maps set parameters in sub-scopes:
//
//	epochs: 200
//	learning_rate: 0.01
//	gcn:
//	  hessian:
//	    dropout: 0.3
package settings

import (
	"io"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/gomlx/gomlx/ml/context"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// LoadFile applies the settings of a YAML file to ctx, see Apply.
func LoadFile(ctx *context.Context, filePath string) (paramsSet []string, err error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open settings file %q", filePath)
	}
	defer func() { _ = f.Close() }()
	paramsSet, err = Apply(ctx, f)
	if err != nil {
		return paramsSet, errors.WithMessagef(err, "settings file %q", filePath)
	}
	klog.V(1).Infof("%d parameters set from %q", len(paramsSet), filePath)
	return paramsSet, nil
}

// Apply reads YAML settings from r and sets them in ctx. It returns the paths of the parameters set.
//
// Every parameter must already have a default value in the root scope of ctx, and the new value is
// converted to the type of the default.
func Apply(ctx *context.Context, r io.Reader) (paramsSet []string, err error) {
	var settings map[string]any
	if err = yaml.NewDecoder(r).Decode(&settings); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing YAML settings")
	}
	return apply(ctx, ctx.InAbsPath(context.RootScope), nil, settings, paramsSet)
}

func apply(root, ctx *context.Context, scope []string, settings map[string]any, paramsSet []string) ([]string, error) {
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	var err error
	for _, key := range keys {
		value := settings[key]
		path := context.ScopeSeparator + strings.Join(append(slices.Clone(scope), key), context.ScopeSeparator)
		if subSettings, ok := value.(map[string]any); ok {
			paramsSet, err = apply(root, ctx.In(key), append(slices.Clone(scope), key), subSettings, paramsSet)
			if err != nil {
				return paramsSet, err
			}
			continue
		}
		defaultValue, found := root.GetParam(key)
		if !found {
			return paramsSet, errors.Errorf("unknown parameter %q: it has no default value in the root scope", path)
		}
		converted, err := convert(defaultValue, value)
		if err != nil {
			return paramsSet, errors.WithMessagef(err, "parameter %q", path)
		}
		ctx.SetParam(key, converted)
		if len(scope) == 0 {
			path = key
		}
		paramsSet = append(paramsSet, path)
	}
	return paramsSet, nil
}

// convert value, as decoded from YAML, to the type of like.
func convert(like, value any) (any, error) {
	switch like.(type) {
	case int:
		switch v := value.(type) {
		case int:
			return v, nil
		case float64:
			if v == math.Trunc(v) {
				return int(v), nil
			}
		}
	case float64:
		switch v := value.(type) {
		case int:
			return float64(v), nil
		case float64:
			return v, nil
		}
	case float32:
		switch v := value.(type) {
		case int:
			return float32(v), nil
		case float64:
			return float32(v), nil
		}
	case bool:
		if v, ok := value.(bool); ok {
			return v, nil
		}
	case string:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case []int:
		if list, ok := value.([]any); ok {
			result := make([]int, 0, len(list))
			for _, item := range list {
				v, err := convert(0, item)
				if err != nil {
					return nil, err
				}
				result = append(result, v.(int))
			}
			return result, nil
		}
	case []string:
		if list, ok := value.([]any); ok {
			result := make([]string, 0, len(list))
			for _, item := range list {
				v, ok := item.(string)
				if !ok {
					return nil, errors.Errorf("list item %v (%T) is not a string", item, item)
				}
				result = append(result, v)
			}
			return result, nil
		}
	}
	return nil, errors.Errorf("can't use value %v (%T) where the default is %v (%T)", value, value, like, like)
}
