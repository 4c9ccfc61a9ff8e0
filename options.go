// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PackageType identifies which of the three Windows Installer database
// flavors a package is: a full installer database, a patch (.msp), or a
// transform (.mst).
type PackageType int

const (
	// Installer is a plain Windows Installer package (.msi).
	Installer PackageType = iota
	// Patch is a Windows Installer patch package (.msp).
	Patch
	// Transform is a Windows Installer transform package (.mst).
	Transform
)

// CLSIDs that the root storage of a compound file carries to identify
// which of the three package flavors it holds.
var (
	installerPackageCLSID = uuid.MustParse("000C1084-0000-0000-C000-000000000046")
	patchPackageCLSID      = uuid.MustParse("000C1086-0000-0000-C000-000000000046")
	transformPackageCLSID  = uuid.MustParse("000C1082-0000-0000-C000-000000000046")
)

// CLSID returns the root-storage class identifier associated with this
// package type.
func (t PackageType) CLSID() uuid.UUID {
	switch t {
	case Patch:
		return patchPackageCLSID
	case Transform:
		return transformPackageCLSID
	default:
		return installerPackageCLSID
	}
}

// packageTypeFromCLSID maps a root-storage CLSID back to a PackageType,
// defaulting to Installer when the CLSID is unrecognized.
func packageTypeFromCLSID(id uuid.UUID) PackageType {
	switch id {
	case patchPackageCLSID:
		return Patch
	case transformPackageCLSID:
		return Transform
	default:
		return Installer
	}
}

// defaultTitle returns the SummaryInfo title a freshly created package of
// this type carries, matching what msidb/rust-msi seed new databases with.
func (t PackageType) defaultTitle() string {
	switch t {
	case Patch:
		return "Patch"
	case Transform:
		return "Transform"
	default:
		return "Installation Database"
	}
}

func (t PackageType) String() string {
	switch t {
	case Patch:
		return "Patch"
	case Transform:
		return "Transform"
	default:
		return "Installer"
	}
}

// Options controls how a Package is opened or created.
type Options struct {
	// Package selects which flavor of package Create produces. Ignored by
	// Open, which instead reads the type from the file's root CLSID.
	Package PackageType

	// DisableCertValidation is kept for symmetry with the rest of the
	// ambient stack; digital signature streams are never cryptographically
	// verified regardless of this flag, only parsed for presence/signer
	// information.
	DisableCertValidation bool

	// Logger is the logger a Package keeps as its *log.Helper. When nil, a
	// stderr logger filtered to error level is used. The package's read
	// and write paths emit no messages through it.
	Logger log.Logger
}

func (o *Options) logger() *log.Helper {
	if o == nil || o.Logger == nil {
		return log.NewHelper(log.NewFilter(log.DefaultLogger, log.FilterLevel(log.LevelError)))
	}
	return log.NewHelper(o.Logger)
}
