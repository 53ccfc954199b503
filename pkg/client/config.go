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

package client

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"sirena/internal/cli"
	"sirena/pkg/io"
	otelCfg "sirena/pkg/logging/otel/config"
	"sirena/pkg/proto"
	"sirena/pkg/util"
)

type Duration = util.Duration

type Config struct {
	Host              string            `toml:"Host" yaml:"host"`
	Port              int               `toml:"Port" yaml:"port"`
	ClientId          uint16            `toml:"ClientId" yaml:"client_id"`
	PrivateKey        string            `toml:"PrivateKey" yaml:"private_key"`
	PrivateKeyPath    string            `toml:"PrivateKeyPath" yaml:"private_key_path"`
	KeyCacheURL       string            `toml:"KeyCacheURL" yaml:"key_cache_url"`
	UsePool           bool              `toml:"UsePool" yaml:"use_pool"`
	Pool              io.PoolConfig     `toml:"Pool" yaml:"pool"`
	MaxRequestRetries int               `toml:"MaxRequestRetries" yaml:"max_request_retries"`
	ReadChunkSize     int               `toml:"ReadChunkSize" yaml:"read_chunk_size"`
	CompressRequest   bool              `toml:"CompressRequest" yaml:"compress_request"`
	CompressResponse  bool              `toml:"CompressResponse" yaml:"compress_response"`
	Outbound          io.OutboundConfig `toml:"Outbound" yaml:"outbound"`
	OTEL              otelCfg.Config    `toml:"OTEL" yaml:"otel"`
}

var defaultConfig = Config{
	Pool:              io.DefaultPoolConfig,
	MaxRequestRetries: cli.DefaultMaxRequestRetries,
	ReadChunkSize:     proto.DefaultReadChunkSize,
	CompressRequest:   true,
	CompressResponse:  true,
	Outbound:          io.DefaultOutboundConfig,
}

func SetDefaultTimeout(connect, read, write time.Duration) {
	defaultConfig.Outbound.ConnectTimeout.Duration = connect
	defaultConfig.Outbound.ReadTimeout.Duration = read
	defaultConfig.Outbound.WriteTimeout.Duration = write
}

func (c *Config) SetDefault() {
	*c = defaultConfig
}

// LoadConfig reads a .toml, .yaml or .yml file on top of the defaults.
func LoadConfig(path string) (conf Config, err error) {
	conf.SetDefault()
	var data []byte
	if data, err = os.ReadFile(path); err != nil {
		return
	}
	err = conf.decode(data, filepath.Ext(path))
	return
}

func (c *Config) decode(data []byte, ext string) error {
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(c); err != nil {
			return fmt.Errorf("toml config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("yaml config: %w", err)
		}
	default:
		return fmt.Errorf("config file extension %q not supported", ext)
	}
	return nil
}

func (c *Config) endpoint() io.ServiceEndpoint {
	return io.ServiceEndpoint{Host: c.Host, Port: c.Port}
}

func (c *Config) validate() error {
	ep := c.endpoint()
	if err := ep.Validate(); err != nil {
		return cli.NewError(cli.KindConfig, "", err)
	}
	if c.ClientId == 0 {
		return cli.NewError(cli.KindConfig, "Config.ClientId not specified", nil)
	}
	if c.PrivateKey == "" && c.PrivateKeyPath == "" {
		return cli.NewError(cli.KindConfig, "one of Config.PrivateKey and Config.PrivateKeyPath required", nil)
	}
	if c.UsePool && c.Pool.MaxSize > 0 && c.Pool.MinSize > c.Pool.MaxSize {
		return cli.NewError(cli.KindConfig,
			fmt.Sprintf("Config.Pool.MinSize %d greater than MaxSize %d", c.Pool.MinSize, c.Pool.MaxSize), nil)
	}
	return nil
}
