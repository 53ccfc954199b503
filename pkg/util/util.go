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

package util

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets configuration files carry durations as "1.5s" strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() (text []byte, err error) {
	text = []byte(d.Duration.String())
	return
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.UnmarshalText([]byte(value.Value))
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// ExpireAtFrom returns the unix time ttl after now.
func ExpireAtFrom(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).Unix()
}

// TimeToLiveFrom is the time left until expireAt, zero once it has passed.
func TimeToLiveFrom(expireAt int64, now time.Time) time.Duration {
	left := time.Unix(expireAt, 0).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

func TimeToLive(expireAt int64) time.Duration {
	return TimeToLiveFrom(expireAt, time.Now())
}
