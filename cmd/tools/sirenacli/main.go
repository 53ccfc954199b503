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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"sirena/pkg/cfg"
	"sirena/pkg/client"
	"sirena/pkg/io"
)

type globalOptions struct {
	cfgFile   string
	overrides []string
	server    string
	clientId  uint16
	keyPath   string
}

var opts globalOptions

func main() {
	rootCmd := &cobra.Command{
		Use:   "sirenacli",
		Short: "Sirena gateway command line client",
		Long: `sirenacli sends queries to a Sirena gateway.

Configuration comes from a TOML or YAML file (-c) with the defaults of
the client library underneath. Any property can be overridden with
--set Key.Sub=value, for example --set Outbound.ReadTimeout=10s.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// glog flags were set through pflag
			flag.CommandLine.Parse(nil)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			glog.Flush()
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.cfgFile, "config", "c", "", "client configuration file (.toml, .yaml)")
	pf.StringArrayVar(&opts.overrides, "set", nil, "override a configuration property, Key.Sub=value")
	pf.StringVarP(&opts.server, "server", "s", "", "gateway address host:port")
	pf.Uint16Var(&opts.clientId, "client-id", 0, "client id")
	pf.StringVar(&opts.keyPath, "key", "", "private key file")
	pf.AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(
		newQueryCmd(),
		newBatchCmd(),
		newHandshakeCmd(),
		newBenchCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers the file, the --set overrides and the shortcut flags
// on top of the library defaults.
func loadConfig() (conf client.Config, err error) {
	if opts.cfgFile != "" {
		if conf, err = client.LoadConfig(opts.cfgFile); err != nil {
			return
		}
	} else {
		conf.SetDefault()
	}
	if len(opts.overrides) != 0 {
		var c cfg.Config
		if err = c.ReadFrom(&conf); err != nil {
			return
		}
		for _, o := range opts.overrides {
			if err = c.SetOverride(o); err != nil {
				return
			}
		}
		if err = c.WriteTo(&conf); err != nil {
			return
		}
	}
	if opts.server != "" {
		var ep io.ServiceEndpoint
		if err = ep.SetFromConnString(opts.server); err != nil {
			return
		}
		conf.Host, conf.Port = ep.Host, ep.Port
	}
	if opts.clientId != 0 {
		conf.ClientId = opts.clientId
	}
	if opts.keyPath != "" {
		conf.PrivateKeyPath = opts.keyPath
	}
	return
}

func newClient() (client.IClient, error) {
	conf, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return client.New(conf)
}
