package handlers

import (
	"testing"

	"github.com/cuemby/cyclecore/pkg/eventtimer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildHandlerDataQuotesAndAliasesURL(t *testing.T) {
	d := TaskEventData{
		Event: "failed", Suite: "mysuite", Point: "20180101T00", Name: "foo",
		SubmitNum: 1, ID: "foo.20180101T00", Message: "job failed",
		SuiteCfg: map[string]string{"URL": "http://example.com"},
		TaskMeta: map[string]string{"URL": "http://task.example.com", "title": "Foo Task"},
	}
	m := d.BuildHandlerData()

	assert.Equal(t, "http://example.com", m["suite_url"])
	assert.Equal(t, "http://task.example.com", m["task_url"])
	_, hasBareURL := m["URL"]
	assert.False(t, hasBareURL, "TaskMeta's URL key must be aliased to task_url, not also left bare")
	assert.Equal(t, "'Foo Task'", m["title"])
	assert.Equal(t, "1", m["submit_num"])
}

func TestBuildHandlerDataNullFieldsQuoteToNone(t *testing.T) {
	d := TaskEventData{Event: "failed", Suite: "s", Point: "p", Name: "n", ID: "n.p", Message: "m"}
	m := d.BuildHandlerData()
	assert.Equal(t, "None", m["batch_sys_name"])
	assert.Equal(t, "None", m["user@host"])
}

func TestSubstituteTemplateReplacesKnownPlaceholders(t *testing.T) {
	data := map[string]string{"event": "failed", "id": "foo.1"}
	out, err := SubstituteTemplate("notify.sh %(event)s %(id)s", data)
	require.NoError(t, err)
	assert.Equal(t, "notify.sh failed foo.1", out)
}

func TestSubstituteTemplateUnknownKeyErrors(t *testing.T) {
	_, err := SubstituteTemplate("notify.sh %(nope)s", map[string]string{})
	assert.Error(t, err)
}

func TestBuildCustomHandlerCmdDetectsTemplate(t *testing.T) {
	data := map[string]string{"event": "failed", "id": "foo.1"}
	cmd, err := BuildCustomHandlerCmd("notify.sh %(event)s %(id)s", "failed", "suite", "foo.1", "job failed", data)
	require.NoError(t, err)
	assert.Equal(t, "notify.sh failed foo.1", cmd)
}

func TestBuildCustomHandlerCmdFallsBackToClassicInterface(t *testing.T) {
	data := map[string]string{"event": "failed", "id": "foo.1"}
	cmd, err := BuildCustomHandlerCmd("notify.sh", "failed", "mysuite", "foo.1", "job failed", data)
	require.NoError(t, err)
	assert.Equal(t, "notify.sh 'failed' 'mysuite' 'foo.1' 'job failed'", cmd)
}

func TestMailSubjectSelectionRules(t *testing.T) {
	k := func(name, event string) eventtimer.Key {
		return eventtimer.Key{Key1: eventtimer.Key1{Kind: eventtimer.KindMail, Event: event}, CyclePoint: "20180101T00", TaskName: name, SubmitNum: 1}
	}

	one := mailSubject([]eventtimer.Key{k("foo", "failed")}, "mysuite")
	assert.Equal(t, "[20180101T00/foo/01 failed] mysuite", one)

	sameEvent := mailSubject([]eventtimer.Key{k("foo", "failed"), k("bar", "failed")}, "mysuite")
	assert.Equal(t, "[2 tasks failed] mysuite", sameEvent)

	mixed := mailSubject([]eventtimer.Key{k("foo", "failed"), k("bar", "succeeded")}, "mysuite")
	assert.Equal(t, "[2 task events] mysuite", mixed)
}
