// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package msi

import (
	"golang.org/x/text/language"
)

// lcidToBCP47 maps the Windows Language Code Identifiers most commonly
// found in an MSI package's SummaryInfo PROPERTY_TEMPLATE and the
// Language column of the _Validation table to a BCP-47 tag string. This
// is the common subset actually exercised by installer authoring tools;
// LanguageTag returns the undetermined-language tag "und" for an LCID
// absent from this table.
var lcidToBCP47 = map[int]string{
	0:     "",
	1025:  "ar",
	1026:  "bg",
	1027:  "ca",
	1028:  "zh-TW",
	1029:  "cs",
	1030:  "da",
	1031:  "de",
	1032:  "el",
	1033:  "en-US",
	1034:  "es",
	1035:  "fi",
	1036:  "fr",
	1037:  "he",
	1038:  "hu",
	1040:  "it",
	1041:  "ja",
	1042:  "ko",
	1043:  "nl",
	1044:  "nb-NO",
	1045:  "pl",
	1046:  "pt-BR",
	1048:  "ro",
	1049:  "ru",
	1050:  "hr",
	1051:  "sk",
	1053:  "sv",
	1054:  "th",
	1055:  "tr",
	1057:  "id",
	1058:  "uk",
	1060:  "sl",
	1061:  "et",
	1062:  "lv",
	1063:  "lt",
	1066:  "vi",
	2052:  "zh-CN",
	2055:  "de-CH",
	2057:  "en-GB",
	2058:  "es-MX",
	2060:  "fr-BE",
	3076:  "zh-HK",
	3079:  "de-AT",
	3081:  "en-AU",
	3082:  "es-ES",
	5124:  "zh-MO",
	4105:  "en-CA",
	4108:  "fr-CH",
}

// LanguageTag returns the BCP-47 tag for a Windows LCID, validated and
// canonicalized through golang.org/x/text/language. An unrecognized LCID
// (one not present in lcidToBCP47) returns the undetermined-language tag
// "und", matching Windows Installer's own fallback for an LCID it has no
// name for; LCID 0 (the neutral/invariant locale) returns "und" as well.
func LanguageTag(lcid int) string {
	tag, ok := lcidToBCP47[lcid]
	if !ok || tag == "" {
		return "und"
	}
	canon, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return canon.String()
}

// LCIDFromTag reverses LanguageTag for the subset of tags it covers,
// returning 0 (the neutral LCID) when the tag is unrecognized.
func LCIDFromTag(tag string) int {
	canon, err := language.Parse(tag)
	if err == nil {
		tag = canon.String()
	}
	for lcid, t := range lcidToBCP47 {
		if t == tag {
			return lcid
		}
	}
	return 0
}
