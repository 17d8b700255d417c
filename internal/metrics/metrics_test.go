/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

package metrics_test

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"bennypowers.dev/potter/internal/metrics"
)

func TestRegenerated(t *testing.T) {
	m := metrics.New()
	m.Regenerated(3, nil)
	m.Regenerated(0, errors.New("render failed"))
	m.CacheWriteFailed("snapshot")

	count, err := testutil.GatherAndCount(m.Registry(), "potter_regenerate_total", "potter_regenerate_error_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("metric count = %d, want 2", count)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"potter_regenerate_total 2",
		"potter_regenerate_error_total 1",
		`potter_cache_write_error_total{kind="snapshot"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *metrics.Metrics
	m.Regenerated(1, nil)
	m.CacheWriteFailed("plugin")
	m.Updated("ok")
	if m.Registry() != nil {
		t.Error("nil metrics should have no registry")
	}
}
