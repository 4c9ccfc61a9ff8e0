// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package msi reads and writes Windows Installer database files (.msi,
// .msp, .mst): the compound-file container, the relational tables and
// columns it stores, the shared string pool rows reference, the
// SummaryInformation property set, and a small query engine for
// selecting, inserting, updating and deleting rows.
package msi
