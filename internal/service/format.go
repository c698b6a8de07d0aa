package service

import (
	"fmt"
	"strings"
)

// FormatNutritionSummary renders a parsed analysis as a chat message. Pure
// function: any structurally valid input, including an empty item list,
// produces a string.
func FormatNutritionSummary(analysis *AnalysisResult) string {
	if analysis == nil || len(analysis.Items) == 0 {
		return "I couldn't recognize any food in your meal 😕"
	}

	var b strings.Builder
	b.WriteString("🍽 *Meal Summary*\n")
	fmt.Fprintf(&b, "*Meal type:* %s\n\n", analysis.MealType)

	b.WriteString("*Items:*\n")
	for _, item := range analysis.Items {
		fmt.Fprintf(&b, "• *%s* — %dg\n  %.0f kcal\n  P: %.0fg  C: %.0fg  F: %.0fg\n\n",
			item.Name, item.PortionGrams, item.EnergyKcal, item.ProteinG, item.CarbsG, item.FatG)
	}

	fmt.Fprintf(&b, "🔥 *Total estimated calories:* %.0f kcal", analysis.TotalEstimatedKcal)
	return b.String()
}
