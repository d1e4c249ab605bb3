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

package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestLogAlsoToFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "run.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatal(err)
	}
	LogPrintf("%d: Loaded %s\n", 3, "a.png")
	LogPrintln("Done")

	wg := sync.WaitGroup{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fmt.Fprintf(LogWriter(), "line %d\n", i)
		}(i)
	}
	wg.Wait()
	LogSync()
	if err := LogClose(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatal(err)
	}
	// two lines plus eight of "line N\n"
	want := len("3: Loaded a.png\n") + len("Done\n") + 8*len("line 0\n")
	if len(data) != want {
		t.Errorf("log has %d bytes; want %d:\n%s", len(data), want, data)
	}
}
