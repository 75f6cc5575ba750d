package rfc9111

import (
	"net/http"
	"testing"
	"time"
)

func TestAgeValueIgnoresParams(t *testing.T) {
	res := &http.Response{Header: make(http.Header)}
	res.Header.Add("Age", "7200")
	if age := age_value(res); age != time.Second*7200 {
		t.Fatalf("age is %v", age)
	}
}

func TestCurrentAgeAddsResidentTime(t *testing.T) {
	now := time.Now()
	res := &http.Response{Header: make(http.Header)}
	res.Header.Set("Date", now.Add(-10*time.Second).UTC().Format(http.TimeFormat))

	requestTime := now.Add(-10 * time.Second)
	responseTime := now.Add(-10 * time.Second)

	age := current_age(res, requestTime, responseTime)
	if age < 10*time.Second {
		t.Fatalf("expected age to include at least 10s of resident time, got %v", age)
	}
}
