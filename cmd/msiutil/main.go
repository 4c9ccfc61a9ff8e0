// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/saferwall/msi"
	"github.com/spf13/cobra"
)

var verbose bool

func prettyPrint(v interface{}) string {
	buff, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buff, "", "\t"); err != nil {
		return string(buff)
	}
	return pretty.String()
}

func rowsToJSON(t *msi.Table, rows *msi.Rows) []map[string]string {
	cols := t.Columns()
	out := make([]map[string]string, rows.Len())
	for i := 0; i < rows.Len(); i++ {
		row := rows.At(i)
		m := make(map[string]string, len(cols))
		for j, c := range cols {
			m[c.Name()] = row.Value(j).String()
		}
		out[i] = m
	}
	return out
}

func dump(cmd *cobra.Command, args []string) {
	path := args[0]
	if verbose {
		log.Printf("opening package %s", path)
	}

	pkg, err := msi.Open(path, &msi.Options{})
	if err != nil {
		log.Fatalf("failed to open %s: %s", path, err)
	}
	defer pkg.Close()

	wantSummary, _ := cmd.Flags().GetBool("summary")
	if wantSummary {
		info := pkg.SummaryInfo()
		title, _ := info.Title()
		subject, _ := info.Subject()
		author, _ := info.Author()
		fmt.Printf("Title:    %s\n", title)
		fmt.Printf("Subject:  %s\n", subject)
		fmt.Printf("Author:   %s\n", author)
		fmt.Printf("Codepage: %d\n", info.Codepage())
	}

	wantTables, _ := cmd.Flags().GetBool("tables")
	if wantTables {
		for _, name := range pkg.Tables() {
			t, ok := pkg.Table(name)
			if !ok {
				continue
			}
			fmt.Printf("%s (%d columns)\n", name, len(t.Columns()))
		}
	}

	table, _ := cmd.Flags().GetString("table")
	if table != "" {
		t, ok := pkg.Table(table)
		if !ok {
			log.Fatalf("no such table: %s", table)
		}
		rows, err := pkg.Select(&msi.Select{From: msi.TableJoin{Table: table}})
		if err != nil {
			log.Fatalf("failed to read table %s: %s", table, err)
		}
		fmt.Println(prettyPrint(rowsToJSON(t, rows)))
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "msiutil",
		Short: "A Windows Installer (MSI) database reader and query tool",
		Long:  "Inspects Windows Installer database files, brought to you by Saferwall",
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.1.0")
		},
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump [msi file]",
		Short: "Dumps tables and summary information from an MSI database",
		Args:  cobra.ExactArgs(1),
		Run:   dump,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	dumpCmd.Flags().Bool("summary", false, "Dump summary information")
	dumpCmd.Flags().Bool("tables", false, "List table names")
	dumpCmd.Flags().String("table", "", "Dump all rows of the named table")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(dumpCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
