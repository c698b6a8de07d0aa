package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mealwise/backend/config"
)

// Safety categories produced by the analyzer.
const (
	SafetyCategoryOK            = "OK"
	SafetyCategoryNotMeal       = "NOT_MEAL"
	SafetyCategoryNudity        = "NUDITY"
	SafetyCategorySexualContent = "SEXUAL_CONTENT"
	SafetyCategoryViolence      = "VIOLENCE"
	SafetyCategorySelfHarm      = "SELF_HARM"
	SafetyCategoryHateSymbols   = "HATE_SYMBOLS"
	SafetyCategoryDrugs         = "DRUGS"
	SafetyCategoryWeapon        = "WEAPON"
	SafetyCategoryOther         = "OTHER"
)

// Meal types produced by the analyzer.
const (
	MealTypeBreakfast = "breakfast"
	MealTypeLunch     = "lunch"
	MealTypeDinner    = "dinner"
	MealTypeSnack     = "snack"
	MealTypeDrink     = "drink"
	MealTypeUnknown   = "unknown"
)

var validSafetyCategories = map[string]bool{
	SafetyCategoryOK:            true,
	SafetyCategoryNotMeal:       true,
	SafetyCategoryNudity:        true,
	SafetyCategorySexualContent: true,
	SafetyCategoryViolence:      true,
	SafetyCategorySelfHarm:      true,
	SafetyCategoryHateSymbols:   true,
	SafetyCategoryDrugs:         true,
	SafetyCategoryWeapon:        true,
	SafetyCategoryOther:         true,
}

var validMealTypes = map[string]bool{
	MealTypeBreakfast: true,
	MealTypeLunch:     true,
	MealTypeDinner:    true,
	MealTypeSnack:     true,
	MealTypeDrink:     true,
	MealTypeUnknown:   true,
}

// NutritionItem is one recognized component of a meal.
type NutritionItem struct {
	Name         string  `json:"name"`
	PortionGrams int     `json:"portion_grams"`
	EnergyKcal   float64 `json:"energy_kcal"`
	ProteinG     float64 `json:"protein_g"`
	CarbsG       float64 `json:"carbs_g"`
	FatG         float64 `json:"fat_g"`
}

// AnalysisResult is the validated analyzer output. When Allowed is false the
// nutrition fields are always empty: meal type unknown, no items, zero kcal.
type AnalysisResult struct {
	Allowed            bool            `json:"allowed"`
	Reason             string          `json:"reason"`
	Category           string          `json:"category"`
	MealType           string          `json:"meal_type"`
	Items              []NutritionItem `json:"items"`
	TotalEstimatedKcal float64         `json:"total_estimated_kcal"`
}

const nutritionSystemPrompt = `You are a nutrition analysis engine with strict content safety rules.

You receive:
- A meal photo (as an image)
- Optional caption text written by the user (e.g. "oatmeal with banana and honey")

Your tasks, in this order:

1) SAFETY & CONTENT CHECK (IMAGE + CAPTION)
   - You MUST check BOTH the image AND the caption text.
   - If EITHER the image OR the caption contains any of the following, the content is NOT ALLOWED:
     - Nudity or explicit sexual content
     - Sexual situations suggestive in nature
     - Graphic violence, gore, or serious physical injury
     - Self-harm, suicide, or encouragement of self-harm
     - Hate symbols, extremist content, or hateful / abusive attacks in text
     - Non-medical illegal drugs or explicit drug use
     - Weapons used in a threatening or aggressive way
   - Also treat the content as NOT ALLOWED if:
     - The image and caption together do NOT clearly describe a food or drink suitable for calorie estimation
       (e.g. memes, pets, landscapes, random objects, screenshots, unrelated chat).

2) NUTRITION ESTIMATION (ONLY IF ALLOWED)
   - If and only if the content is safe AND clearly shows/describes a meal or drink, estimate what is in the meal and its nutrition.

You MUST return a single JSON object that matches this schema exactly:

{
  "allowed": boolean,
  "reason": string,
  "category": "OK" | "NOT_MEAL" | "NUDITY" | "SEXUAL_CONTENT" | "VIOLENCE" | "SELF_HARM" | "HATE_SYMBOLS" | "DRUGS" | "WEAPON" | "OTHER",

  "meal_type": "breakfast" | "lunch" | "dinner" | "snack" | "drink" | "unknown",
  "items": [
    {
      "name": string,
      "portion_grams": number,
      "energy_kcal": number,
      "protein_g": number,
      "carbs_g": number,
      "fat_g": number
    }
  ],
  "total_estimated_kcal": number
}

IMPORTANT LOGIC:

- If the image or caption is UNSAFE or NOT a meal/drink:
  - Set "allowed": false.
  - Choose the most appropriate "category".
  - In "reason", briefly explain whether the problem comes from the image, the caption, or both.
  - In this case, DO NOT perform detailed nutrition analysis:
    - Set "meal_type": "unknown"
    - Set "items": []
    - Set "total_estimated_kcal": 0

- If the image + caption ARE safe AND clearly show/describe a meal or drink:
  - Set "allowed": true and "category": "OK".
  - In "reason", briefly describe what you see.
  - Then fill all nutrition fields as described below.

Nutrition rules (only when allowed = true):

- Use the image as the primary source of truth. Use the caption only to clarify details.
- If the photo or caption clearly suggests a typical meal time, choose an appropriate meal_type; otherwise use "unknown".
- Break the meal into intuitive items.
- Estimate portion_grams for each item based on visual size and typical serving sizes. Use integers (no decimals).
- Numbers must be non-negative.
- Ensure energy_kcal roughly matches macros (4 kcal/g for protein & carbs, 9 kcal/g for fat), but you do not need to be perfectly precise.
- total_estimated_kcal must equal the sum of all items' energy_kcal (allow for small rounding discrepancies).

Formatting requirements:

- OUTPUT ONLY RAW JSON. No explanations, no markdown, no comments, no trailing commas.
- Do not include any extra fields.
- The response must be valid JSON that can be parsed directly.`

// VisionService sends meal photos to the OpenAI-compatible chat completions
// API and validates the structured response.
type VisionService struct {
	apiKey string
	apiURL string
	model  string
	client *http.Client
	logger *logrus.Logger
}

// NewVisionService creates a new VisionService instance
func NewVisionService(cfg *config.Config, logger *logrus.Logger) *VisionService {
	timeout := cfg.AnalysisTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &VisionService{
		apiKey: cfg.OpenAIAPIKey,
		apiURL: cfg.OpenAIAPIURL,
		model:  cfg.OpenAIModel,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type visionImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type visionContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type visionRequest struct {
	Model          string            `json:"model"`
	Messages       []visionMessage   `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze sends the image and optional caption for analysis and returns the
// validated result. Every failure mode — transport, timeout, non-200 status,
// schema violation — surfaces as *AnalysisServiceError. No retry is performed
// here; retry policy belongs to the caller.
func (s *VisionService) Analyze(ctx context.Context, image []byte, caption string) (*AnalysisResult, error) {
	parts := []visionContentPart{}
	if caption != "" {
		parts = append(parts, visionContentPart{
			Type: "text",
			Text: "User caption: " + caption,
		})
	}
	parts = append(parts, visionContentPart{
		Type: "image_url",
		ImageURL: &visionImageURL{
			URL:    "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image),
			Detail: "auto",
		},
	})

	reqBody := visionRequest{
		Model: s.model,
		Messages: []visionMessage{
			{Role: "system", Content: nutritionSystemPrompt},
			{Role: "user", Content: parts},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.2,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &AnalysisServiceError{Op: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, &AnalysisServiceError{Op: "create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &AnalysisServiceError{Op: "send request", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AnalysisServiceError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		s.logger.WithFields(logrus.Fields{
			"component": "vision",
			"status":    resp.StatusCode,
		}).Error("analysis API request failed")
		return nil, &AnalysisServiceError{Op: "call API", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var result visionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &AnalysisServiceError{Op: "decode response", Err: err}
	}
	if len(result.Choices) == 0 {
		return nil, &AnalysisServiceError{Op: "decode response", Err: fmt.Errorf("no choices in API response")}
	}

	analysis, err := parseAnalysis([]byte(result.Choices[0].Message.Content))
	if err != nil {
		return nil, &AnalysisServiceError{Op: "validate payload", Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"component": "vision",
		"allowed":   analysis.Allowed,
		"category":  analysis.Category,
		"items":     len(analysis.Items),
	}).Info("meal analysis completed")

	return analysis, nil
}

type rawNutritionItem struct {
	Name         *string  `json:"name"`
	PortionGrams *int     `json:"portion_grams"`
	EnergyKcal   *float64 `json:"energy_kcal"`
	ProteinG     *float64 `json:"protein_g"`
	CarbsG       *float64 `json:"carbs_g"`
	FatG         *float64 `json:"fat_g"`
}

type rawAnalysis struct {
	Allowed            *bool               `json:"allowed"`
	Reason             *string             `json:"reason"`
	Category           *string             `json:"category"`
	MealType           *string             `json:"meal_type"`
	Items              *[]rawNutritionItem `json:"items"`
	TotalEstimatedKcal *float64            `json:"total_estimated_kcal"`
}

// parseAnalysis validates the analyzer payload against the fixed schema.
// Missing required fields, wrong types, out-of-enum values and negative
// numbers are all hard failures; a disallowed verdict has its nutrition
// fields forced empty regardless of what the model produced.
func parseAnalysis(data []byte) (*AnalysisResult, error) {
	var raw rawAnalysis
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	switch {
	case raw.Allowed == nil:
		return nil, fmt.Errorf("missing field %q", "allowed")
	case raw.Reason == nil:
		return nil, fmt.Errorf("missing field %q", "reason")
	case raw.Category == nil:
		return nil, fmt.Errorf("missing field %q", "category")
	case raw.MealType == nil:
		return nil, fmt.Errorf("missing field %q", "meal_type")
	case raw.Items == nil:
		return nil, fmt.Errorf("missing field %q", "items")
	case raw.TotalEstimatedKcal == nil:
		return nil, fmt.Errorf("missing field %q", "total_estimated_kcal")
	}

	if !validSafetyCategories[*raw.Category] {
		return nil, fmt.Errorf("unknown category %q", *raw.Category)
	}
	if !validMealTypes[*raw.MealType] {
		return nil, fmt.Errorf("unknown meal_type %q", *raw.MealType)
	}
	if *raw.TotalEstimatedKcal < 0 {
		return nil, fmt.Errorf("negative total_estimated_kcal")
	}

	result := &AnalysisResult{
		Allowed:  *raw.Allowed,
		Reason:   *raw.Reason,
		Category: *raw.Category,
	}

	if !result.Allowed {
		// Safety short-circuits nutrition estimation.
		result.MealType = MealTypeUnknown
		result.Items = []NutritionItem{}
		result.TotalEstimatedKcal = 0
		return result, nil
	}

	items := make([]NutritionItem, 0, len(*raw.Items))
	for i, it := range *raw.Items {
		if it.Name == nil || it.PortionGrams == nil || it.EnergyKcal == nil ||
			it.ProteinG == nil || it.CarbsG == nil || it.FatG == nil {
			return nil, fmt.Errorf("item %d: missing field", i)
		}
		if *it.PortionGrams < 0 || *it.EnergyKcal < 0 || *it.ProteinG < 0 ||
			*it.CarbsG < 0 || *it.FatG < 0 {
			return nil, fmt.Errorf("item %d: negative value", i)
		}
		items = append(items, NutritionItem{
			Name:         *it.Name,
			PortionGrams: *it.PortionGrams,
			EnergyKcal:   *it.EnergyKcal,
			ProteinG:     *it.ProteinG,
			CarbsG:       *it.CarbsG,
			FatG:         *it.FatG,
		})
	}

	result.MealType = *raw.MealType
	result.Items = items
	result.TotalEstimatedKcal = *raw.TotalEstimatedKcal
	return result, nil
}
