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

// kdbx-parse prints the in-memory representation of a kdbx database.
// Primarily for verifying parser changes.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"zombiezen.com/go/kdbx/internal/cmdutil"
	"zombiezen.com/go/kdbx/pkg/kdbx"
)

func main() {
	var (
		password      string
		showPasswords bool
	)
	cmd := &cobra.Command{
		Use:           "kdbx-parse <file>",
		Short:         "Parse a kdbx database and print its contents",
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
			printDatabase(db, showPasswords)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "database password (prompted when omitted)")
	cmd.Flags().BoolVar(&showPasswords, "show-passwords", false, "print protected values in the clear")
	cmdutil.Run(cmd)
}

func printDatabase(db *kdbx.Database, showPasswords bool) {
	fmt.Printf("Database: %s\n", db.Name())
	if desc := db.Description(); desc != "" {
		fmt.Printf("Description: %s\n", desc)
	}
	printGroup(db.Root, 0, showPasswords)
}

func printGroup(g *kdbx.Group, depth int, showPasswords bool) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s+ %s (%v)\n", indent, g.Name, g.UUID)
	for _, e := range g.Entries {
		fmt.Printf("%s  - %s (%v)\n", indent, e.Title(), e.UUID)
		for _, f := range e.Fields {
			switch {
			case f.Value.Kind == kdbx.Protected && !showPasswords:
				fmt.Printf("%s      %s: <protected>\n", indent, f.Key)
			case f.Value.Kind == kdbx.Empty:
				fmt.Printf("%s      %s:\n", indent, f.Key)
			default:
				fmt.Printf("%s      %s: %s\n", indent, f.Key, f.Value.Content)
			}
		}
		if n := len(e.History); n > 0 {
			fmt.Printf("%s      (%d history entries)\n", indent, n)
		}
	}
	for _, sub := range g.Groups {
		printGroup(sub, depth+1, showPasswords)
	}
}
