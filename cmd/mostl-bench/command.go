// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matrixorigin/mostl/pkg/config"
	"github.com/matrixorigin/mostl/pkg/logutil"
)

func runCommand() *cobra.Command {
	var (
		path    string
		workers int
		seed    int64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workload described by a config file",
		Long: "Run randomized vector operations on a pool of workers, check every " +
			"vector against a plain slice and report allocator metrics",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if path != "" {
				var err error
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("workers") {
				cfg.Bench.Workers = workers
			}
			if cmd.Flags().Changed("seed") {
				cfg.Bench.Seed = seed
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logutil.SetupLogger(&cfg.Log)
			rep, err := runBench(cmd.Context(), cfg)
			if err != nil {
				logutil.Error("bench failed", zap.Error(err))
				return err
			}
			rep.print(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "toml config file, defaults apply when empty")
	cmd.Flags().IntVar(&workers, "workers", 0, "override [bench].workers")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override [bench].seed")
	return cmd
}

func configCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().Encode(cmd.OutOrStdout()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout())
			return err
		},
	}
}
