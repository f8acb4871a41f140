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

// kdbx-generate writes a sample kdbx database.  Primarily for
// verifying writer changes against other KeePass clients.
package main

import (
	"io"

	"github.com/spf13/cobra"

	"zombiezen.com/go/kdbx/internal/cmdutil"
	"zombiezen.com/go/kdbx/pkg/kdbx"
	"zombiezen.com/go/kdbx/pkg/pwgen"
)

func main() {
	var (
		password       string
		randomPassword bool
	)
	cmd := &cobra.Command{
		Use:           "kdbx-generate [output file]",
		Short:         "Write a sample kdbx database",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := "sample.kdbx"
			if len(args) > 0 {
				out = args[0]
			}
			return generate(out, password, randomPassword)
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "kdbxrs", "password for the generated database")
	cmd.Flags().BoolVar(&randomPassword, "random-entry-password", false, "store a random password in the sample entry")
	cmdutil.Run(cmd)
}

func generate(path, password string, randomPassword bool) error {
	db, err := kdbx.New(&kdbx.Options{Password: password})
	if err != nil {
		return err
	}
	db.SetName("BarName")
	db.SetDescription("BazDesc")

	entry, err := db.NewEntry()
	if err != nil {
		return err
	}
	entry.SetTitle("Bar")
	entryPassword := "kdbxrs"
	if randomPassword {
		entryPassword, err = pwgen.Generate(24, pwgen.DefaultSet, nil)
		if err != nil {
			return err
		}
	}
	entry.SetPassword(entryPassword)
	db.Root.AddEntry(entry)

	log := cmdutil.Logger()
	if err := cmdutil.WriteFileAtomic(path, func(w io.Writer) error {
		return db.Write(w)
	}); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("wrote sample database")
	return nil
}
