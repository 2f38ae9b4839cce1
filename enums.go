/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package trainconfig

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// The enum types of the schema (activation function, decay style, optimizer
// name, ...) are small integers with a fixed list of YAML spellings. The
// helpers below implement their shared name lookup and YAML codec; each enum
// is declared next to the struct using it.

func enumName[E ~int](value E, names []string) string {
	if int(value) < 0 || int(value) >= len(names) {
		return fmt.Sprintf("%T(%d)", value, int(value))
	}
	return names[value]
}

func enumFromName[E ~int](name string, names []string, what string) (E, error) {
	for i, n := range names {
		if n == name {
			return E(i), nil
		}
	}
	return 0, errors.Errorf("unknown %s %q, valid values are %q", what, name, names)
}

func unmarshalEnum[E ~int](node *yaml.Node, dst *E, names []string, what string) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return errors.Wrapf(err, "failed to decode %s", what)
	}
	value, err := enumFromName[E](name, names, what)
	if err != nil {
		return err
	}
	*dst = value
	return nil
}
