// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Well-known SummaryInformation property identifiers, as Windows
// Installer itself defines them.
const (
	PropertyCodepage          uint32 = 1
	PropertyTitle             uint32 = 2
	PropertySubject           uint32 = 3
	PropertyAuthor            uint32 = 4
	PropertyKeywords          uint32 = 5
	PropertyComments          uint32 = 6
	PropertyTemplate          uint32 = 7
	PropertyLastSavedBy       uint32 = 8
	PropertyRevisionNumber    uint32 = 9
	PropertyCreateTimeDate    uint32 = 12
	PropertyLastSaveTimeDate  uint32 = 13
	PropertyPageCount         uint32 = 14
	PropertyWordCount         uint32 = 15
	PropertyCreatingApp       uint32 = 18
	PropertySecurity          uint32 = 19
)

// SummaryInfo is a façade over the package's SummaryInformation property
// set, exposing the well-known properties Windows Installer tooling
// reads and writes as typed accessors.
type SummaryInfo struct {
	set      *propertySet
	modified bool
}

func newSummaryInfo(packageType PackageType) *SummaryInfo {
	set := newPropertySet()
	set.setInt(PropertyCodepage, int32(CodePageWindows1252), false)
	set.setStr(PropertyTitle, packageType.defaultTitle())
	set.setInt(PropertyWordCount, 2, false)
	now := time.Now().UTC()
	set.setFiletime(PropertyCreateTimeDate, now)
	set.setFiletime(PropertyLastSaveTimeDate, now)
	return &SummaryInfo{set: set, modified: true}
}

func summaryInfoFromStream(data []byte) (*SummaryInfo, error) {
	set, err := parsePropertySet(data)
	if err != nil {
		return nil, err
	}
	return &SummaryInfo{set: set}, nil
}

func (s *SummaryInfo) encode() ([]byte, error) { return s.set.encode() }

func (s *SummaryInfo) isModified() bool { return s.modified }
func (s *SummaryInfo) markUnmodified()  { s.modified = false }

// Codepage returns the codepage recorded in PROPERTY_CODEPAGE.
func (s *SummaryInfo) Codepage() CodePage {
	if v, ok := s.set.get(PropertyCodepage); ok {
		return CodePage(uint16(v.i))
	}
	return CodePageWindows1252
}

// SetCodepage sets PROPERTY_CODEPAGE.
func (s *SummaryInfo) SetCodepage(c CodePage) {
	s.set.setInt(PropertyCodepage, int32(c), false)
	s.modified = true
}

func (s *SummaryInfo) strProp(id uint32) (string, bool) {
	v, ok := s.set.get(id)
	if !ok || v.kind != vtLpstr {
		return "", false
	}
	return v.s, true
}

func (s *SummaryInfo) setStrProp(id uint32, value string) {
	s.set.setStr(id, value)
	s.modified = true
}

// Title returns PROPERTY_TITLE.
func (s *SummaryInfo) Title() (string, bool) { return s.strProp(PropertyTitle) }

// SetTitle sets PROPERTY_TITLE.
func (s *SummaryInfo) SetTitle(v string) { s.setStrProp(PropertyTitle, v) }

// Subject returns PROPERTY_SUBJECT.
func (s *SummaryInfo) Subject() (string, bool) { return s.strProp(PropertySubject) }

// SetSubject sets PROPERTY_SUBJECT.
func (s *SummaryInfo) SetSubject(v string) { s.setStrProp(PropertySubject, v) }

// Author returns PROPERTY_AUTHOR.
func (s *SummaryInfo) Author() (string, bool) { return s.strProp(PropertyAuthor) }

// SetAuthor sets PROPERTY_AUTHOR.
func (s *SummaryInfo) SetAuthor(v string) { s.setStrProp(PropertyAuthor, v) }

// Keywords returns PROPERTY_KEYWORDS.
func (s *SummaryInfo) Keywords() (string, bool) { return s.strProp(PropertyKeywords) }

// SetKeywords sets PROPERTY_KEYWORDS.
func (s *SummaryInfo) SetKeywords(v string) { s.setStrProp(PropertyKeywords, v) }

// Comments returns PROPERTY_COMMENTS.
func (s *SummaryInfo) Comments() (string, bool) { return s.strProp(PropertyComments) }

// SetComments sets PROPERTY_COMMENTS.
func (s *SummaryInfo) SetComments(v string) { s.setStrProp(PropertyComments, v) }

// Template returns PROPERTY_TEMPLATE, the "platform;language" string
// (e.g. "Intel;1033") that records target architecture and LCID.
func (s *SummaryInfo) Template() (string, bool) { return s.strProp(PropertyTemplate) }

// SetTemplate sets PROPERTY_TEMPLATE.
func (s *SummaryInfo) SetTemplate(v string) { s.setStrProp(PropertyTemplate, v) }

// Architecture returns the processor architecture half of PROPERTY_TEMPLATE
// (e.g. "Intel", "x64", "Intel64"), the part before the semicolon.
func (s *SummaryInfo) Architecture() (string, bool) {
	v, ok := s.Template()
	if !ok {
		return "", false
	}
	arch, _, found := strings.Cut(v, ";")
	if !found {
		return "", false
	}
	return arch, true
}

// Languages returns the comma-separated LCID list half of
// PROPERTY_TEMPLATE, the part after the semicolon.
func (s *SummaryInfo) Languages() ([]int32, bool) {
	v, ok := s.Template()
	if !ok {
		return nil, false
	}
	_, langs, found := strings.Cut(v, ";")
	if !found || langs == "" {
		return nil, false
	}
	parts := strings.Split(langs, ",")
	out := make([]int32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			continue
		}
		out = append(out, int32(n))
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// SetArchitectureLanguages sets PROPERTY_TEMPLATE from an architecture
// string and a list of LCIDs, in the "platform;lcid,lcid,..." form
// Windows Installer expects.
func (s *SummaryInfo) SetArchitectureLanguages(arch string, lcids []int32) {
	parts := make([]string, len(lcids))
	for i, id := range lcids {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	s.SetTemplate(arch + ";" + strings.Join(parts, ","))
}

// LastSavedBy returns PROPERTY_LASTSAVEDBY.
func (s *SummaryInfo) LastSavedBy() (string, bool) { return s.strProp(PropertyLastSavedBy) }

// SetLastSavedBy sets PROPERTY_LASTSAVEDBY.
func (s *SummaryInfo) SetLastSavedBy(v string) { s.setStrProp(PropertyLastSavedBy, v) }

// CreatingApplication returns PROPERTY_APPNAME.
func (s *SummaryInfo) CreatingApplication() (string, bool) { return s.strProp(PropertyCreatingApp) }

// SetCreatingApplication sets PROPERTY_APPNAME.
func (s *SummaryInfo) SetCreatingApplication(v string) { s.setStrProp(PropertyCreatingApp, v) }

// UUID returns PROPERTY_UUID (the package/revision code), parsed out of
// its braced GUID string form.
func (s *SummaryInfo) UUID() (uuid.UUID, bool) {
	v, ok := s.strProp(PropertyRevisionNumber)
	if !ok {
		return uuid.Nil, false
	}
	trimmed := v
	if len(trimmed) >= 2 && trimmed[0] == '{' && trimmed[len(trimmed)-1] == '}' {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// SetUUID sets PROPERTY_UUID from a uuid.UUID, formatted as a braced,
// uppercase GUID string the way Windows Installer expects.
func (s *SummaryInfo) SetUUID(id uuid.UUID) {
	s.setStrProp(PropertyRevisionNumber, "{"+upperHex(id.String())+"}")
}

func upperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func (s *SummaryInfo) intProp(id uint32) (int32, bool) {
	v, ok := s.set.get(id)
	if !ok || (v.kind != vtI2 && v.kind != vtI4) {
		return 0, false
	}
	return v.i, true
}

// PageCount returns PROPERTY_PAGECOUNT, conventionally the minimum
// installer engine version required to process this database.
func (s *SummaryInfo) PageCount() (int32, bool) { return s.intProp(PropertyPageCount) }

// SetPageCount sets PROPERTY_PAGECOUNT.
func (s *SummaryInfo) SetPageCount(v int32) {
	s.set.setInt(PropertyPageCount, v, false)
	s.modified = true
}

// WordCount returns PROPERTY_WORDCOUNT, a bitfield of summary-level
// installer flags (e.g. long string refs, admin image, compressed
// content).
func (s *SummaryInfo) WordCount() (int32, bool) { return s.intProp(PropertyWordCount) }

// SetWordCount sets PROPERTY_WORDCOUNT.
func (s *SummaryInfo) SetWordCount(v int32) {
	s.set.setInt(PropertyWordCount, v, true)
	s.modified = true
}

// Security returns PROPERTY_SECURITY, the read/write protection level.
func (s *SummaryInfo) Security() (int32, bool) { return s.intProp(PropertySecurity) }

// SetSecurity sets PROPERTY_SECURITY.
func (s *SummaryInfo) SetSecurity(v int32) {
	s.set.setInt(PropertySecurity, v, false)
	s.modified = true
}

func (s *SummaryInfo) timeProp(id uint32) (time.Time, bool) {
	v, ok := s.set.get(id)
	if !ok || v.kind != vtFiletime {
		return time.Time{}, false
	}
	return filetimeToTime(v.ft), true
}

// CreationTime returns PROPERTY_CREATE_DTM.
func (s *SummaryInfo) CreationTime() (time.Time, bool) { return s.timeProp(PropertyCreateTimeDate) }

// SetCreationTime sets PROPERTY_CREATE_DTM.
func (s *SummaryInfo) SetCreationTime(t time.Time) {
	s.set.setFiletime(PropertyCreateTimeDate, t)
	s.modified = true
}

// LastSaveTime returns PROPERTY_LASTSAVE_DTM.
func (s *SummaryInfo) LastSaveTime() (time.Time, bool) { return s.timeProp(PropertyLastSaveTimeDate) }

// SetLastSaveTime sets PROPERTY_LASTSAVE_DTM.
func (s *SummaryInfo) SetLastSaveTime(t time.Time) {
	s.set.setFiletime(PropertyLastSaveTimeDate, t)
	s.modified = true
}
