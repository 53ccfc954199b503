//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

// Package cfg holds configuration properties as a tree with case
// insensitive keys, so that files and command line "Key.Sub=value"
// overrides can be merged before decoding into a typed struct.
package cfg

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"
)

type (
	// Config is not goroutine safe.
	Config struct {
		kvMap map[string]keyValue
	}
	keyValue struct {
		key   string
		value interface{}
	}
)

// ReadFrom loads the properties of a struct or map through its TOML form.
func (c *Config) ReadFrom(i interface{}) (err error) {
	var buf bytes.Buffer
	if i != nil {
		if err = toml.NewEncoder(&buf).Encode(i); err != nil {
			return
		}
	}
	return c.ReadFromToml(&buf)
}

func (c *Config) ReadFromToml(r io.Reader) (err error) {
	m := make(map[string]interface{})
	if _, err = toml.NewDecoder(r).Decode(&m); err == nil {
		c.setFrom(m)
	}
	return
}

func (c *Config) ReadFromYaml(r io.Reader) (err error) {
	m := make(map[string]interface{})
	if err = yaml.NewDecoder(r).Decode(&m); err != nil && err != io.EOF {
		return
	}
	c.setFrom(m)
	return nil
}

// ReadFromFile picks the format from the file extension.
func (c *Config) ReadFromFile(file string) (err error) {
	var f *os.File
	if f, err = os.Open(file); err != nil {
		return
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(file)) {
	case ".toml":
		return c.ReadFromToml(f)
	case ".yaml", ".yml":
		return c.ReadFromYaml(f)
	}
	return fmt.Errorf("%s: unsupported config format", file)
}

func (c *Config) WriteToToml(w io.Writer) (err error) {
	m := make(map[string]interface{})
	setMap(m, c.kvMap)
	return toml.NewEncoder(w).Encode(m)
}

// WriteTo decodes the properties into a struct or map. Keys match the TOML
// names of the target fields.
func (c *Config) WriteTo(v interface{}) (err error) {
	var buf bytes.Buffer
	if err = c.WriteToToml(&buf); err != nil {
		return
	}
	_, err = toml.Decode(buf.String(), v)
	return
}

// Merge overrides properties with the ones of another Config.
func (c *Config) Merge(overrides *Config) error {
	if c.kvMap == nil {
		c.kvMap = make(map[string]keyValue)
	}
	return merge(c.kvMap, overrides.kvMap)
}

// WriteToKVList writes the properties as sorted "Dot.Delimited.Key=value" lines.
func (c *Config) WriteToKVList(w io.Writer) {
	var lines []string
	for _, v := range c.kvMap {
		lines = appendKeyValue(lines, v.key, &v)
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// GetValue returns the value of a dot-delimited key, nil if not found.
// Sub trees are returned as map[string]interface{}.
func (c *Config) GetValue(dotDelimitedKey string) interface{} {
	return getValueFromMap(c.kvMap, strings.Split(dotDelimitedKey, "."))
}

func (c *Config) SetKeyValue(dotDelimitedKey string, v interface{}) error {
	strs := strings.Split(dotDelimitedKey, ".")
	tmap := make(map[string]keyValue)
	cm := tmap
	for len(strs) > 1 {
		nmap := make(map[string]keyValue)
		cm[strings.ToLower(strs[0])] = keyValue{strs[0], nmap}
		cm = nmap
		strs = strs[1:]
	}
	cm[strings.ToLower(strs[0])] = keyValue{strs[0], v}
	if c.kvMap == nil {
		c.kvMap = make(map[string]keyValue)
	}
	return merge(c.kvMap, tmap)
}

// SetOverride applies one "Key.Sub=value" assignment. The value is read as a
// TOML value when it parses as one, as a plain string otherwise.
func (c *Config) SetOverride(assignment string) error {
	key, value, ok := strings.Cut(assignment, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("override %q: want Key=value", assignment)
	}
	return c.SetKeyValue(key, parseValue(strings.TrimSpace(value)))
}

func parseValue(s string) interface{} {
	var m map[string]interface{}
	if _, err := toml.Decode("v = "+s, &m); err == nil {
		return m["v"]
	}
	return s
}

func appendKeyValue(lines []string, k string, v *keyValue) []string {
	if vm, ok := v.value.(map[string]keyValue); ok {
		for _, sv := range vm {
			lines = appendKeyValue(lines, k+"."+sv.key, &sv)
		}
		return lines
	}
	return append(lines, fmt.Sprintf("%s=%v", k, v.value))
}

func (c *Config) setFrom(m map[string]interface{}) {
	c.kvMap = make(map[string]keyValue)
	setKvMap(c.kvMap, m)
}

func merge(to, from map[string]keyValue) error {
	for k, v := range from {
		vm, vismap := v.value.(map[string]keyValue)

		toV, found := to[k]
		if !found {
			if vismap {
				nmap := make(map[string]keyValue)
				to[k] = keyValue{v.key, nmap}
				if err := merge(nmap, vm); err != nil {
					return err
				}
			} else {
				to[k] = v
			}
			continue
		}
		toMap, toIsMap := toV.value.(map[string]keyValue)
		switch {
		case toIsMap && vismap:
			if err := merge(toMap, vm); err != nil {
				return err
			}
		case toIsMap || vismap:
			return fmt.Errorf("%s: cannot replace a table with a value", toV.key)
		case toV.value != nil && reflect.TypeOf(toV.value) != reflect.TypeOf(v.value):
			return fmt.Errorf("%s: type mismatch. target: %T source: %T", toV.key, toV.value, v.value)
		default:
			to[k] = keyValue{toV.key, v.value}
		}
	}
	return nil
}

func getValueFromMap(imap map[string]keyValue, keys []string) interface{} {
	if len(keys) == 0 {
		return nil
	}
	v, ok := imap[strings.ToLower(keys[0])]
	if !ok {
		return nil
	}
	vm, isMap := v.value.(map[string]keyValue)
	if len(keys) == 1 {
		if isMap {
			nmap := make(map[string]interface{})
			setMap(nmap, vm)
			return nmap
		}
		return v.value
	}
	if isMap {
		return getValueFromMap(vm, keys[1:])
	}
	return nil
}

func setKvMap(to map[string]keyValue, from map[string]interface{}) {
	if to == nil || from == nil {
		return
	}
	for k, v := range from {
		lkey := strings.ToLower(k)
		if _, found := to[lkey]; found {
			glog.Warningf("key: %s found, skip", k)
			continue
		}
		if vm, ok := v.(map[string]interface{}); ok {
			kvmap := make(map[string]keyValue)
			to[lkey] = keyValue{key: k, value: kvmap}
			setKvMap(kvmap, vm)
		} else {
			to[lkey] = keyValue{k, v}
		}
	}
}

func setMap(to map[string]interface{}, from map[string]keyValue) {
	if to == nil || from == nil {
		return
	}
	for _, v := range from {
		if vm, ok := v.value.(map[string]keyValue); ok {
			nmap := make(map[string]interface{})
			to[v.key] = nmap
			setMap(nmap, vm)
		} else {
			to[v.key] = v.value
		}
	}
}
