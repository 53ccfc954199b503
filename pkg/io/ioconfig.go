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

package io

import (
	"time"

	"sirena/pkg/util"
)

var (
	DefaultOutboundConfig = OutboundConfig{
		ConnectTimeout:    util.Duration{Duration: 5 * time.Second},
		ReadTimeout:       util.Duration{Duration: 60 * time.Second},
		WriteTimeout:      util.Duration{Duration: 60 * time.Second},
		ConnectAttempts:   5,
		BackoffMin:        util.Duration{Duration: 1 * time.Second},
		BackoffMax:        util.Duration{Duration: 2 * time.Second},
		KeepAliveIdle:     util.Duration{Duration: 60 * time.Second},
		KeepAliveInterval: util.Duration{Duration: 75 * time.Second},
		KeepAliveCount:    9,
	}

	DefaultPoolConfig = PoolConfig{
		MinSize: 2,
		MaxSize: 4,
	}
)

type (
	OutboundConfig struct {
		ConnectTimeout    util.Duration
		ReadTimeout       util.Duration
		WriteTimeout      util.Duration
		ConnectAttempts   int
		BackoffMin        util.Duration
		BackoffMax        util.Duration
		KeepAliveIdle     util.Duration
		KeepAliveInterval util.Duration
		KeepAliveCount    int
	}

	PoolConfig struct {
		MinSize int
		MaxSize int
	}
)

func (conf *OutboundConfig) SetDefaultIfNotDefined() (set bool) {
	if conf.ConnectTimeout.Duration == 0 {
		set = true
		conf.ConnectTimeout = DefaultOutboundConfig.ConnectTimeout
	}
	if conf.ReadTimeout.Duration == 0 {
		set = true
		conf.ReadTimeout = DefaultOutboundConfig.ReadTimeout
	}
	if conf.WriteTimeout.Duration == 0 {
		set = true
		conf.WriteTimeout = DefaultOutboundConfig.WriteTimeout
	}
	if conf.ConnectAttempts <= 0 {
		set = true
		conf.ConnectAttempts = DefaultOutboundConfig.ConnectAttempts
	}
	if conf.BackoffMin.Duration == 0 {
		set = true
		conf.BackoffMin = DefaultOutboundConfig.BackoffMin
	}
	if conf.BackoffMax.Duration == 0 {
		set = true
		conf.BackoffMax = DefaultOutboundConfig.BackoffMax
	}
	if conf.BackoffMax.Duration < conf.BackoffMin.Duration {
		set = true
		conf.BackoffMax = conf.BackoffMin
	}
	if conf.KeepAliveIdle.Duration == 0 {
		set = true
		conf.KeepAliveIdle = DefaultOutboundConfig.KeepAliveIdle
	}
	if conf.KeepAliveInterval.Duration == 0 {
		set = true
		conf.KeepAliveInterval = DefaultOutboundConfig.KeepAliveInterval
	}
	if conf.KeepAliveCount == 0 {
		set = true
		conf.KeepAliveCount = DefaultOutboundConfig.KeepAliveCount
	}
	return
}

func (conf *PoolConfig) SetDefaultIfNotDefined() (set bool) {
	if conf.MaxSize <= 0 {
		set = true
		conf.MaxSize = DefaultPoolConfig.MaxSize
	}
	if conf.MinSize <= 0 {
		set = true
		conf.MinSize = DefaultPoolConfig.MinSize
	}
	if conf.MinSize > conf.MaxSize {
		set = true
		conf.MinSize = conf.MaxSize
	}
	return
}
