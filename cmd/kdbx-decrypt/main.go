// Copyright 2026 The Kdbx Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// kdbx-decrypt prints the decrypted XML of a kdbx database to stdout.
// Primarily for investigating the kdbx format.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"zombiezen.com/go/kdbx/internal/cmdutil"
	"zombiezen.com/go/kdbx/pkg/kdbx"
)

func main() {
	var password string
	cmd := &cobra.Command{
		Use:           "kdbx-decrypt <file>",
		Short:         "Decrypt a kdbx database and print its XML",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("password") {
				var err error
				password, err = cmdutil.ReadPassword("Password: ")
				if err != nil {
					return err
				}
			}
			f, err := kdbx.Open(args[0])
			if err != nil {
				return err
			}
			db, err := f.Unlock(&kdbx.Options{Password: password})
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(db.RawXML())
			return err
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "database password (prompted when omitted)")
	cmdutil.Run(cmd)
}
