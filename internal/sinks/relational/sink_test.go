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

package relational

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lichess-archive/chess-pipeline/internal/pgnmodel"
)

func TestNullableParamsPassThroughNilForAbsentFields(t *testing.T) {
	require.Nil(t, fileParam(nil))
	require.Nil(t, rankParam(nil))
	require.Nil(t, roleParam(nil))
}

func TestNullableParamsUnwrapPresentFields(t *testing.T) {
	f := pgnmodel.FileC
	r := pgnmodel.RankFifth
	role := pgnmodel.Queen

	require.Equal(t, int(pgnmodel.FileC), fileParam(&f))
	require.Equal(t, int(pgnmodel.RankFifth), rankParam(&r))
	require.Equal(t, int(pgnmodel.Queen), roleParam(&role))
}
