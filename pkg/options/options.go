// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

// Package options normalizes repeated CLI option values into the flat and
// nested mappings the request document wants.
package options

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	shellquote "github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
)

// NormalizeMultiString splits every value on the separator, trims
// whitespace and flattens the result into one list.
func NormalizeMultiString(values []string, separator string) []string {
	var normalized []string
	for _, value := range values {
		for _, item := range strings.Split(value, separator) {
			normalized = append(normalized, strings.TrimSpace(item))
		}
	}
	return normalized
}

// NormalizeBool interprets common truthy spellings, everything else is
// false.
func NormalizeBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "1", "y", "on":
		return true
	}
	return false
}

// OptionsToDict builds a mapping from a list of `key=value|@file` tokens.
// Tokens are shell-lexed first, so one quoted token may expand to several
// options. Later occurrences of a key win. The name is used in error
// messages only.
func OptionsToDict(name string, tokens []string) (map[string]string, error) {
	result := map[string]string{}

	var split []string
	for _, token := range tokens {
		words, err := shellquote.Split(token)
		if err != nil {
			return nil, &cerrors.OptionFormatError{Name: name, Token: token}
		}
		split = append(split, words...)
	}

	for _, option := range split {
		if strings.HasPrefix(option, "@") {
			loaded, err := optionsFromFile(option[1:])
			if err != nil {
				return nil, err
			}
			for key, value := range loaded {
				result[key] = value
			}
			continue
		}

		key, value, found := strings.Cut(option, "=")
		if !found {
			return nil, &cerrors.OptionFormatError{Name: name, Token: option}
		}
		result[key] = value
	}

	return result, nil
}

// optionsFromFile loads a mapping from a YAML or dotenv file. YAML wins
// when it parses; a parse failure falls back to dotenv.
func optionsFromFile(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, &cerrors.ConfigError{Path: path, Reason: "invalid environment file specified"}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &cerrors.ConfigError{Path: path, Reason: "cannot be read"}
	}

	var parsed interface{}
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		// not YAML, try dotenv KEY=VALUE lines
		values, err := godotenv.UnmarshalBytes(content)
		if err != nil {
			return nil, &cerrors.ConfigError{Path: path, Reason: "failed to load variables"}
		}
		return values, nil
	}

	if parsed == nil {
		return map[string]string{}, nil
	}

	mapping, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, &cerrors.ConfigError{Path: path, Reason: "is not a dict"}
	}

	result := make(map[string]string, len(mapping))
	for key, value := range mapping {
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			return nil, &cerrors.ConfigError{Path: path, Reason: "values are not primitive types"}
		case nil:
			result[key] = ""
		default:
			result[key] = fmt.Sprintf("%v", value)
		}
	}

	return result, nil
}

// Artifacts builds the artifacts list for one artifact type. Each raw
// value is either a bare id or a `key=value[,key=value]` specification.
func Artifacts(artifactType string, raw []string) ([]api.Artifact, error) {
	var result []api.Artifact

	for _, item := range raw {
		artifact := api.Artifact{Type: artifactType}

		if strings.Contains(item, "=") {
			spec, err := OptionsToDict(fmt.Sprintf("artifact `%s`", item), NormalizeMultiString([]string{item}, ","))
			if err != nil {
				return nil, err
			}
			artifact.ID = spec["id"]
			artifact.NVR = spec["nvr"]
			if install, ok := spec["install"]; ok {
				value := NormalizeBool(install)
				artifact.Install = &value
			}
		} else {
			artifact.ID = item
		}

		result = append(result, artifact)
	}

	return result, nil
}

// ReadGlobPaths concatenates the contents of every file matched by the
// given glob patterns. A leading ~ expands to the user's home directory.
func ReadGlobPaths(globPaths []string) (string, error) {
	var contents strings.Builder

	for _, globPath := range globPaths {
		if strings.HasPrefix(globPath, "~") {
			home, err := os.UserHomeDir()
			if err == nil {
				globPath = filepath.Join(home, globPath[1:])
			}
		}

		paths, err := filepath.Glob(globPath)
		if err != nil {
			return "", fmt.Errorf("invalid glob pattern %q: %w", globPath, err)
		}

		for _, path := range paths {
			content, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("error reading %q: %w", path, err)
			}
			contents.Write(content)
		}
	}

	return contents.String(), nil
}
