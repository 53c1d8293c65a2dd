package skills

import "fmt"

// Prompts sent to the vision model. Each asks for one shape of answer so the
// parser can find it among whatever commentary the model adds.

func locateCoordinatePrompt(item string) string {
	return fmt.Sprintf(`Look at this Old School RuneScape screenshot. Find the %[1]s in the inventory.
Report the pixel position of the centre of the %[1]s relative to the top-left corner of this image.`, item)
}

func locateCoordinateHint(item string) string {
	return fmt.Sprintf(`Answer in the form "%s at [x, y]" using whole pixels. If it is not in the inventory, answer "%s not found".`, item, item)
}

func locateSlotPrompt(item string) string {
	return fmt.Sprintf(`Look at this Old School RuneScape inventory. Find the %s.
Inventory slots are numbered 0 to 27, left to right and top to bottom, four per row.`, item)
}

func locateSlotHint(item string) string {
	return fmt.Sprintf(`Answer with "%s in slot N". If there is none, answer with slot -1.`, item)
}

func verifyPrompt(expected string) string {
	return fmt.Sprintf(`Look at this Old School RuneScape screenshot. Has the following happened: %s?`, expected)
}

const verifyHint = `Respond with only "yes" or "no".`

const describePrompt = `Describe what you see in this game screenshot.`

const describeHint = `Answer in one sentence.`
