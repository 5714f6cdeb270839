package achievements

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectSingle(t *testing.T) {
	d := NewDefaultDetector()
	hits := d.Detect("Нарешті закінчив проєкт")
	require.Len(t, hits, 1)
	require.Equal(t, "Завершувач", hits[0].Title)
	require.Equal(t, "Довів справу до кінця!", hits[0].Description)
}

func TestDetectBothTriggersOfOneRuleFireOnce(t *testing.T) {
	d := NewDefaultDetector()
	hits := d.Detect("закінчив і завершив")
	require.Len(t, hits, 1)
}

func TestDetectMultipleRules(t *testing.T) {
	d := NewDefaultDetector()
	hits := d.Detect("ЗАВЕРШИВ курс і навчився готувати")
	require.Equal(t, []Hit{
		{Title: "Завершувач", Description: "Довів справу до кінця!"},
		{Title: "Студент життя", Description: "Освоїв щось нове!"},
	}, hits)
}

func TestDetectNothing(t *testing.T) {
	d := NewDefaultDetector()
	require.Empty(t, d.Detect(""))
	require.Empty(t, d.Detect("просто гуляв"))
}

func TestDetectIgnoresEmptyTriggers(t *testing.T) {
	d := NewDetector([]Rule{{Triggers: []string{""}, Hit: Hit{Title: "x"}}})
	require.Empty(t, d.Detect("anything"))
}
