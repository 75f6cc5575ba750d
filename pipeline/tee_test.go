package pipeline

import (
	"io"
	"strings"
	"testing"
)

func TestTeeBodyDeliversBothSides(t *testing.T) {
	body := io.NopCloser(strings.NewReader("hello, world"))
	client, observer := TeeBody(body)

	observed := make(chan string, 1)
	go func() {
		b, _ := io.ReadAll(observer)
		observed <- string(b)
	}()

	got, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("client read error: %v", err)
	}
	if string(got) != "hello, world" {
		t.Fatalf("client got %q", got)
	}
	client.Close()

	if o := <-observed; o != "hello, world" {
		t.Fatalf("observer got %q", o)
	}
}
