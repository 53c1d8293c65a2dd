package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCoordinate(t *testing.T) {
	cases := []struct {
		name string
		text string
		x, y int
	}{
		{"brackets", "The logs are at [50, 20].", 50, 20},
		{"parens", "Located at (123,456) in the inventory", 123, 456},
		{"labeled", "x=640, y=360", 640, 360},
		{"json", `{"x": 42, "y": 7}`, 42, 7},
		{"fenced json", "```json\n{\"x\": 42.6, \"y\": 7.2}\n```", 43, 7},
		{"first wins", "first [1,2] then [3,4]", 1, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Extract(tc.text, Coordinate)
			require.NoError(t, err)
			assert.Equal(t, Coordinate, v.Shape)
			assert.Equal(t, tc.x, v.X)
			assert.Equal(t, tc.y, v.Y)
		})
	}
}

func TestExtractCoordinateFailures(t *testing.T) {
	_, err := Extract("I think it is somewhere near the top", Coordinate)
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = Extract("[0.45, 0.60]", Coordinate)
	assert.ErrorIs(t, err, ErrParseFailure, "normalized fractions must not be read as pixels")

	_, err = Extract("The item is not visible in this screenshot.", Coordinate)
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestNegativeCoordinateIsReturnedUnclamped(t *testing.T) {
	v, err := Extract("[-5, 10]", Coordinate)
	require.NoError(t, err)
	assert.Equal(t, -5, v.X)
}

func TestExtractSlot(t *testing.T) {
	v, err := Extract("5", SlotIndex)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Slot)

	v, err = Extract("After looking at 2 rows, the logs are in slot 13.", SlotIndex)
	require.NoError(t, err)
	assert.Equal(t, 13, v.Slot, "an explicit slot phrase beats an earlier bare number")

	_, err = Extract("-1", SlotIndex)
	assert.ErrorIs(t, err, ErrAbsent)

	_, err = Extract("slot 28", SlotIndex)
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = Extract("the top left one", SlotIndex)
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = Extract("None of the slots hold that item", SlotIndex)
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestExtractBoolean(t *testing.T) {
	cases := map[string]bool{
		"Yes, a fire is burning.":              true,
		"yes":                                  true,
		"No fire visible":                      false,
		"NO.":                                  false,
		"I don't see any fire near the player": false,
		"Correct, there is a fire now":         true,
	}
	for text, want := range cases {
		v, err := Extract(text, Boolean)
		require.NoError(t, err, text)
		assert.Equal(t, want, v.Bool, text)
	}

	_, err := Extract("There is a campfire", Boolean)
	assert.ErrorIs(t, err, ErrParseFailure, "no lexicon word means no verdict")
}

func TestExtractFreeText(t *testing.T) {
	v, err := Extract("  A character stands in a forest.  ", FreeText)
	require.NoError(t, err)
	assert.Equal(t, "A character stands in a forest.", v.Text)

	_, err = Extract("   ", FreeText)
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestExtractNearPicksTheNamedItem(t *testing.T) {
	text := "tinderbox at [10,20], logs at [50,20]"

	v, err := ExtractNear(text, Coordinate, "tinderbox")
	require.NoError(t, err)
	assert.Equal(t, Value{Shape: Coordinate, X: 10, Y: 20}, v)

	v, err = ExtractNear(text, Coordinate, "Logs")
	require.NoError(t, err)
	assert.Equal(t, Value{Shape: Coordinate, X: 50, Y: 20}, v)
}

func TestExtractNearUsesLatestDecisiveMention(t *testing.T) {
	text := "Looking for logs and a tinderbox: tinderbox at [1,1], logs at [2,2]. Those logs look fresh."
	v, err := ExtractNear(text, Coordinate, "logs")
	require.NoError(t, err)
	assert.Equal(t, 2, v.X)
}

func TestExtractNearAbsence(t *testing.T) {
	for _, text := range []string{
		"tinderbox at [10,20], no logs",
		"logs: not in inventory. tinderbox at [10,20]",
		"tinderbox at [10,20]; the logs are missing",
		"I can't find the logs anywhere",
	} {
		_, err := ExtractNear(text, Coordinate, "logs")
		assert.ErrorIs(t, err, ErrAbsent, text)
		assert.NotErrorIs(t, err, ErrParseFailure, text)
	}
}

func TestExtractNearDoesNotBorrowEarlierCoordinates(t *testing.T) {
	_, err := ExtractNear("tinderbox at [10,20] and logs somewhere", Coordinate, "logs")
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestExtractNearWithoutMention(t *testing.T) {
	v, err := ExtractNear("[300, 400]", Coordinate, "logs")
	require.NoError(t, err)
	assert.Equal(t, 300, v.X)
}

func TestExtractNearNeverLendsAnotherItemsValue(t *testing.T) {
	for _, text := range []string{
		"I can see the tinderbox but not its exact position; logs at [50, 20].",
		"tinderbox: unknown. logs at [50, 20]",
		"Only the logs are visible, at [50, 20].",
		"I found the tinderbox. It is at [50, 20].",
	} {
		_, err := ExtractNear(text, Coordinate, "tinderbox", "tinderbox", "logs")
		assert.ErrorIs(t, err, ErrParseFailure, text)

		_, err = ExtractNear(text, Coordinate, "tinderbox")
		assert.ErrorIs(t, err, ErrParseFailure, text)
	}
}

func TestExtractNearStopsAtOtherItems(t *testing.T) {
	text := "tinderbox, and logs at [50, 20]"

	_, err := ExtractNear(text, Coordinate, "tinderbox", "logs")
	assert.ErrorIs(t, err, ErrParseFailure)

	v, err := ExtractNear(text, Coordinate, "logs", "tinderbox")
	require.NoError(t, err)
	assert.Equal(t, 50, v.X)

	_, err = ExtractNear("tinderbox, logs: slot 4", SlotIndex, "tinderbox", "logs")
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestExtractNearUnnamedAnswers(t *testing.T) {
	v, err := ExtractNear("Position: [300, 400]", Coordinate, "logs", "tinderbox")
	require.NoError(t, err)
	assert.Equal(t, 300, v.X)

	v, err = ExtractNear("7", SlotIndex, "logs")
	require.NoError(t, err)
	assert.Equal(t, 7, v.Slot)

	_, err = ExtractNear("The tinderbox is at [300, 400]", Coordinate, "logs", "tinderbox")
	assert.ErrorIs(t, err, ErrParseFailure)

	_, err = ExtractNear("Not found", Coordinate, "logs")
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestStrayIntegersAreNotSlots(t *testing.T) {
	for _, text := range []string{
		"The tinderbox is in the 2nd row.",
		"The tinderbox is one of 3 tools",
		"tinderbox near slot 4th",
	} {
		_, err := ExtractNear(text, SlotIndex, "tinderbox")
		assert.ErrorIs(t, err, ErrParseFailure, text)
	}

	_, err := Extract("It is the 2nd one", SlotIndex)
	assert.ErrorIs(t, err, ErrParseFailure)

	v, err := ExtractNear("tinderbox: 5", SlotIndex, "tinderbox")
	require.NoError(t, err)
	assert.Equal(t, 5, v.Slot)
}

func TestIdiomsAreNotAbsence(t *testing.T) {
	for _, text := range []string{
		"There is no doubt the logs are at [50, 20].",
		"No problem, the logs are at [50, 20].",
		"Not a question: logs at [50, 20]",
	} {
		v, err := ExtractNear(text, Coordinate, "logs")
		require.NoError(t, err, text)
		assert.Equal(t, Value{Shape: Coordinate, X: 50, Y: 20}, v, text)
	}

	for _, text := range []string{
		"The inventory holds no more logs.",
		"I don't have any logs.",
		"You are without logs now",
		"I cannot see the logs",
	} {
		_, err := ExtractNear(text, Coordinate, "logs")
		assert.ErrorIs(t, err, ErrAbsent, text)
	}
}

func TestExtractNearJSONListing(t *testing.T) {
	text := `Here you go: {"items": [{"name": "Tinderbox", "slot": 0}, {"name": "Logs", "slot": 4}]}`

	v, err := ExtractNear(text, SlotIndex, "logs")
	require.NoError(t, err)
	assert.Equal(t, 4, v.Slot)

	_, err = ExtractNear(text, SlotIndex, "knife")
	assert.ErrorIs(t, err, ErrAbsent)

	v, err = ExtractNear(`{"name": "logs", "x": 12, "y": 40}`, Coordinate, "logs")
	require.NoError(t, err)
	assert.Equal(t, 12, v.X)
	assert.Equal(t, 40, v.Y)

	_, err = ExtractNear(`{"name": "logs", "found": false}`, Coordinate, "logs")
	assert.ErrorIs(t, err, ErrAbsent)
}

func TestExtractNearSlot(t *testing.T) {
	v, err := ExtractNear("The tinderbox is in slot 0 and the logs are in slot 3", SlotIndex, "logs")
	require.NoError(t, err)
	assert.Equal(t, 3, v.Slot)
}

func TestOutOfBoundsIsParseFailure(t *testing.T) {
	assert.ErrorIs(t, ErrOutOfBounds, ErrParseFailure)
}

func TestParsingIsDeterministic(t *testing.T) {
	inputs := []string{
		"tinderbox at [10,20], logs at [50,20]",
		"No fire visible",
		"maybe near the middle?",
		`{"items": [{"name": "logs", "slot": 7}]}`,
	}
	for _, in := range inputs {
		for _, shape := range []Shape{SlotIndex, Coordinate, Boolean, FreeText} {
			v1, err1 := ExtractNear(in, shape, "logs")
			for i := 0; i < 20; i++ {
				v2, err2 := ExtractNear(in, shape, "logs")
				assert.Equal(t, v1, v2)
				if err1 == nil {
					assert.NoError(t, err2)
				} else {
					assert.EqualError(t, err2, err1.Error())
				}
			}
		}
	}
}
