// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package weights

import (
	"encoding/json"
	"fmt"
	"strings"
)

// A named intermediate of the weight estimation
type Stage int

const (
	StageGrayscale Stage = iota
	StageLaplacian
	StageContrast
	StageSaturation
	StageExposedness
	StageWeight
)

var stageNames = []string{"grayscale", "laplacian", "contrast", "saturation", "exposedness", "weight"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// Parses a stage from its name, case insensitive
func ParseStage(name string) (Stage, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range stageNames {
		if n == lower {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weight stage '%s', want one of %s", name, strings.Join(stageNames, ", "))
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	st, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func (s Stage) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

func (s *Stage) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	st, err := ParseStage(name)
	if err != nil {
		return err
	}
	*s = st
	return nil
}
