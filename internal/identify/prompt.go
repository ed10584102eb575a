package identify

import "fmt"

const systemText = "You are a sommelier identifying wines from labels and descriptions. Return valid JSON matching the requested schema. Use null for fields you cannot determine. Report confidence as a percentage from 0 to 100."

const textPromptTemplate = `Identify the wine described below.

Description:
%s

Return a valid JSON object:
{"producer": "<producer name>", "wine_name": "<wine/cuvee name>", "vintage": "<year or null>", "region": "<region or null>", "wine_type": "<red|white|rose|sparkling|fortified|dessert or null>", "grapes": ["<variety>", ...], "confidence": <0-100>, "candidates": [<up to 3 alternative objects of the same shape, best first>]}`

const imagePromptTemplate = `Identify the wine on this label photo.%s

Read the producer, wine name, vintage, region and grape varieties from the label. Return a valid JSON object:
{"producer": "<producer name>", "wine_name": "<wine/cuvee name>", "vintage": "<year or null>", "region": "<region or null>", "wine_type": "<red|white|rose|sparkling|fortified|dessert or null>", "grapes": ["<variety>", ...], "confidence": <0-100>, "candidates": [<up to 3 alternative objects of the same shape, best first>]}`

func buildPrompt(in Input) string {
	if in.ImageData != "" {
		hint := ""
		if in.Text != "" {
			hint = " Additional context: " + in.Text
		}
		return fmt.Sprintf(imagePromptTemplate, hint)
	}
	return fmt.Sprintf(textPromptTemplate, in.Text)
}
