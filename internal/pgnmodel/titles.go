// Copyright 2026 The Chess Pipeline Authors
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

package pgnmodel

import "fmt"

var playerTitlesByTag = map[string]PlayerTitle{
	"FM":  FideMaster,
	"IM":  InternationalMaster,
	"NM":  NationalMaster,
	"BOT": Bot,
	"CM":  CandidateMaster,
	"GM":  Grandmaster,
	"WIM": WomanInternationalMaster,
	"WFM": WomanFideMaster,
	"LM":  LichessMaster,
	"WGM": WomanGrandmaster,
	"WCM": WomanCandidateMaster,
}

// ParsePlayerTitle maps a header value to a PlayerTitle. An unrecognized
// value is a recoverable parse error per §4.5.
func ParsePlayerTitle(value string) (PlayerTitle, error) {
	if t, ok := playerTitlesByTag[value]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unexpected player title: %s", value)
}
