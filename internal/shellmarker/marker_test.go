package shellmarker

import "testing"

type fakeCommand struct {
	command, cwdStart string
	output            []byte
	exitCode          int
	cwdEnd            string
	finished          bool
}

type fakeStore struct {
	commands []*fakeCommand
}

func (s *fakeStore) AddCommand(command, cwdStart string) (int64, error) {
	s.commands = append(s.commands, &fakeCommand{command: command, cwdStart: cwdStart})
	return int64(len(s.commands)), nil
}

func (s *fakeStore) AppendOutput(id int64, data []byte) error {
	s.commands[id-1].output = append(s.commands[id-1].output, data...)
	return nil
}

func (s *fakeStore) FinishCommand(id int64, exitCode int, cwdEnd string) error {
	c := s.commands[id-1]
	c.exitCode, c.cwdEnd, c.finished = exitCode, cwdEnd, true
	return nil
}

func TestSimpleCommandScenario(t *testing.T) {
	store := &fakeStore{}
	m := New(store)
	m.SetPendingCommand("echo hello")

	input := "\x1B]133;A;cwd=/home/u\x07hello\n\x1B]133;B;exit=0;cwd=/home/u\x07"
	events, err := m.Process([]byte(input))
	if err != nil {
		t.Fatal(err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Kind != EventCommandStart || events[0].Cwd != "/home/u" {
		t.Fatalf("unexpected event 0: %+v", events[0])
	}
	if events[1].Kind != EventOutput || len(events[1].Segments) != 1 || events[1].Segments[0].Text != "hello\n" {
		t.Fatalf("unexpected event 1: %+v", events[1])
	}
	if events[2].Kind != EventCommandEnd || events[2].ExitCode != 0 || events[2].Cwd != "/home/u" {
		t.Fatalf("unexpected event 2: %+v", events[2])
	}

	if len(store.commands) != 1 {
		t.Fatalf("expected 1 stored command, got %d", len(store.commands))
	}
	c := store.commands[0]
	if c.command != "echo hello" || string(c.output) != "hello\n" || c.exitCode != 0 || !c.finished {
		t.Fatalf("unexpected stored command: %+v", c)
	}
}

func TestJustExitedInteractiveModeSuppressesOutput(t *testing.T) {
	store := &fakeStore{}
	m := New(store)
	m.SetPendingCommand("vim")
	m.Process([]byte("\x1B]133;A;cwd=/tmp\x07"))
	m.SetJustExitedInteractiveMode(true)

	events, err := m.Process([]byte("\r$ \x1B]133;B;exit=0;cwd=/tmp\x07"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Kind != EventCommandEnd {
		t.Fatalf("expected only a commandEnd event, got %+v", events)
	}
	if string(store.commands[0].output) != "" {
		t.Fatalf("expected suppressed output, got %q", store.commands[0].output)
	}
	if m.JustExitedInteractiveMode() {
		t.Fatal("expected flag cleared after 133;B")
	}
}

func TestFirstPromptWithNoPendingCommandIsIgnored(t *testing.T) {
	store := &fakeStore{}
	m := New(store)

	events, err := m.Process([]byte("\x1B]133;A;cwd=/home/u\x07"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for the shell's first prompt, got %+v", events)
	}
	if len(store.commands) != 0 {
		t.Fatal("expected no command created")
	}
}
