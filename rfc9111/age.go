package rfc9111

import (
	"net/http"
	"time"
)

// §  5.1.  Age
// §
// §     The "Age" response header field conveys the sender's estimate of the
// §     time since the response was generated or successfully validated at
// §     the origin server.
func getAge(res *http.Response) (time.Duration, bool) {
	if secondsStr := res.Header.Get("Age"); secondsStr != "" {
		return deltaSeconds(secondsStr)
	}
	return 0, false
}

// §  4.2.3.  Calculating Age
// §
// §     Age calculation uses the age_value, date_value, request_time,
// §     response_time and the current time ("now").

func age_value(res *http.Response) time.Duration {
	if age, present := getAge(res); present {
		return age
	}
	return 0
}

func date_value(res *http.Response) time.Time {
	if dateHeader := res.Header.Get("Date"); dateHeader != "" {
		if date, err := HttpDate(dateHeader); err == nil {
			return date
		}
	}
	return time.Time{}
}

// §       apparent_age = max(0, response_time - date_value);
func apparent_age(res *http.Response, responseTime time.Time) time.Duration {
	date := date_value(res)
	if date.IsZero() {
		return 0
	}
	return durationMax(0, responseTime.Sub(date))
}

// §       response_delay = response_time - request_time;
func response_delay(responseTime, requestTime time.Time) time.Duration {
	return responseTime.Sub(requestTime)
}

// §       corrected_age_value = age_value + response_delay;
func corrected_age_value(res *http.Response, requestTime, responseTime time.Time) time.Duration {
	return age_value(res) + response_delay(responseTime, requestTime)
}

// §       corrected_initial_age = max(apparent_age, corrected_age_value);
func corrected_initial_age(res *http.Response, requestTime, responseTime time.Time) time.Duration {
	return durationMax(apparent_age(res, responseTime), corrected_age_value(res, requestTime, responseTime))
}

// §       resident_time = now - response_time;
func resident_time(responseTime time.Time) time.Duration {
	return time.Since(responseTime)
}

// §       current_age = corrected_initial_age + resident_time;
func current_age(res *http.Response, requestTime, responseTime time.Time) time.Duration {
	return corrected_initial_age(res, requestTime, responseTime) + resident_time(responseTime)
}

// AddAgeHeader sets the stored response's Age header field to its current
// current_age, as required when a stored response is reused without
// validation.
func AddAgeHeader(storedResponse *http.Response, requestTime, responseTime time.Time) {
	age := current_age(storedResponse, requestTime, responseTime)
	storedResponse.Header.Set("Age", toDeltaSeconds(age))
}
