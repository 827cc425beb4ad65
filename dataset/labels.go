// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"strconv"

	"github.com/juju/errors"
	"modernc.org/strutil"
)

// Labels maps positions along one axis (items, users or features) to names.
type Labels struct {
	pool  *strutil.Pool
	names []string
	index map[string]int
}

// NewLabels creates labels from names. Names must be unique.
func NewLabels(names []string) (*Labels, error) {
	l := &Labels{
		pool:  strutil.NewPool(),
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for _, name := range names {
		if _, exist := l.index[name]; exist {
			return nil, errors.NotValidf("duplicate label %q", name)
		}
		l.add(name)
	}
	return l, nil
}

// DefaultLabels names n positions "0", "1", ..., "n-1".
func DefaultLabels(n int) *Labels {
	l := &Labels{
		pool:  strutil.NewPool(),
		names: make([]string, 0, n),
		index: make(map[string]int, n),
	}
	for i := 0; i < n; i++ {
		l.add(strconv.Itoa(i))
	}
	return l
}

func (l *Labels) add(name string) {
	name = l.pool.Align(name)
	l.index[name] = len(l.names)
	l.names = append(l.names, name)
}

func (l *Labels) Count() int {
	return len(l.names)
}

func (l *Labels) Name(i int) (string, bool) {
	if i < 0 || i >= len(l.names) {
		return "", false
	}
	return l.names[i], true
}

func (l *Labels) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Names returns a copy of all names in positional order.
func (l *Labels) Names() []string {
	return append([]string(nil), l.names...)
}

// Select returns new labels holding the names at positions, in the given order.
func (l *Labels) Select(positions []int) *Labels {
	s := &Labels{
		pool:  strutil.NewPool(),
		names: make([]string, 0, len(positions)),
		index: make(map[string]int, len(positions)),
	}
	for _, i := range positions {
		s.add(l.names[i])
	}
	return s
}
