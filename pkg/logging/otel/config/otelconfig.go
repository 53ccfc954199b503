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

package config

import (
	"time"

	"sirena/pkg/util"
)

type HistBuckets struct {
	Request []float64
	Connect []float64
}

type Config struct {
	Host        string
	Port        uint32
	UrlPath     string
	Environment string
	ServiceName string
	Enabled     bool
	Resolution  util.Duration
	UseTls      bool

	HistogramBuckets HistBuckets
}

func (c *Config) SetDefaultIfNotDefined() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 4318
	}
	if c.Resolution.Duration == 0 {
		c.Resolution.Duration = 60 * time.Second
	}
	if c.ServiceName == "" {
		c.ServiceName = "sirena-client"
	}
	if c.UrlPath == "" {
		c.UrlPath = "/v1/metrics"
	}
	if c.HistogramBuckets.Request == nil {
		c.HistogramBuckets.Request = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}
	}
	if c.HistogramBuckets.Connect == nil {
		c.HistogramBuckets.Connect = []float64{1, 5, 10, 50, 100, 500, 1000, 5000}
	}
}
