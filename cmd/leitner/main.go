package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/danieldreier/mcp-leitner/internal/config"
	"github.com/danieldreier/mcp-leitner/internal/flashcards"
	"github.com/danieldreier/mcp-leitner/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const leitnerServerInfo = `
This is a Leitner-system flashcard server designed for middle school students.
Cards live in five boxes: every correct answer moves a card up one box, and
every incorrect answer sends it back to box 1. Higher boxes wait longer
between reviews, so a card in box 5 is considered mastered.
When using this server, always follow this precise educational workflow:

1. PRESENTATION PHASE:
   - Present only the front (question) side of the flashcard first
   - Never reveal the answer until after the student has attempted a response
   - Use an enthusiastic, encouraging tone with appropriate emojis
   - Make learning fun and exciting! 🤩 💪 🚀

2. RESPONSE PHASE:
   - Collect the student's answer attempt
   - Be supportive regardless of correctness
   - Use excited, age-appropriate language for middle schoolers

3. EVALUATION PHASE:
   - Show the correct answer only after the student has responded
   - Compare the student's answer to the correct one with enthusiasm
   - For incorrect answers, explain the concept briefly in a friendly way
   - Ask a follow-up question to check understanding
   - Use many emojis and positive reinforcement! 🎯 ⭐ 🏆

4. OUTCOME PHASE:
   - Decide whether the answer was correct or incorrect:
     * correct: the student recalled the essential fact, even if the wording differed
     * incorrect: the answer was absent, wrong, or too vague to show real recall
   - Submit exactly one outcome per card using submit_review
   - Never tell the student which box a card is in unless they ask
   - Frame a trip back to box 1 as a fresh start, not a failure 🌱

5. TRANSITION PHASE:
   - Flow naturally to the next card to maintain engagement
   - Use transitional phrases like "Let's try another one!" or "Ready for the next challenge?"
   - Keep the energy high with enthusiastic language and emojis 🔥 ✨ 🎉

6. COMPLETION PHASE:
   - When out of due cards, congratulate the student on a great study session
   - Use extra enthusiastic celebration language and emojis 🎊 🎓 🥳
   - Share their box progress so they can see cards climbing toward mastery
   - Propose brainstorming new cards together
   - When creating new cards, analyze what the student struggled with most
   - Identify prerequisite concepts they may be missing
   - Focus on fundamental knowledge common to multiple missed questions

Always maintain an excited, encouraging tone throughout the entire session using plenty of emojis!
`

func main() {
	// Parse command-line flags; empty values defer to the config file
	// and environment
	storageBackend := flag.String("storage", "", "Storage backend: file or sqlite (overrides config)")
	filePath := flag.String("file", "", "Path to flashcard data file (overrides config)")
	dbPath := flag.String("db", "", "Path to SQLite database file (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, or error (overrides config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *storageBackend != "" {
		cfg.Storage.Backend = *storageBackend
	}
	if *filePath != "" {
		cfg.Storage.DataFile = *filePath
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	// Flags can introduce values the config file never saw
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := flashcards.NewLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}

	// Initialize storage
	var store storage.Storage
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		store = storage.NewSQLiteStorage(cfg.Storage.DBPath)
	default:
		store = storage.NewFileStorage(cfg.Storage.DataFile)
	}
	if err := store.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// Create a new MCP server
	s := server.NewMCPServer(
		"Leitner Flashcards MCP",
		"1.0.0",
		server.WithInstructions(leitnerServerInfo),  // Provide educational workflow guidance
		server.WithResourceCapabilities(true, true), // Resource capabilities for subscribe and listChanged
		server.WithToolCapabilities(true),           // Enable tool capabilities
		server.WithLogging(),                        // Enable logging for the server
	)

	// Initialize the flashcard service
	service := flashcards.NewServiceWithLogger(store, logger)

	// Create context with the service for tool handlers
	ctx := context.WithValue(context.Background(), "service", service)

	// Define the get_due_card tool
	getDueCardTool := mcp.NewTool("get_due_card",
		mcp.WithDescription(
			"Get the next flashcard due for review with statistics. "+
				"IMPORTANT EDUCATIONAL WORKFLOW: "+
				"1. Show ONLY the front (question) side of the card to the student 📝 "+
				"2. DO NOT reveal the back (answer) side at this stage ⚠️ "+
				"3. Ask the student to attempt to recall and provide their answer 🤔 "+
				"4. Use an enthusiastic, excited tone with plenty of emojis 🚀 "+
				"5. Make it fun and engaging for middle school students! 🎮 "+
				"6. NEVER show both sides of the card simultaneously at this phase ❌ "+
				"Cards come back in the order they were created, so the review queue is stable and predictable.",
		),
		// Define parameters
		mcp.WithString("collection_id",
			mcp.Description("Only return cards from this collection"),
		),
	)

	// Define the submit_review tool
	submitReviewTool := mcp.NewTool("submit_review",
		mcp.WithDescription(
			"Submit whether the student answered the card correctly. "+
				"IMPORTANT EDUCATIONAL WORKFLOW: "+
				"1. Now that the student has provided their answer, show the correct answer 📝 "+
				"2. Compare the student's answer with the correct one supportively and enthusiastically 🎯 "+
				"3. For incorrect answers, briefly explain the concept in a friendly way 🤗 "+
				"4. Ask a quick follow-up question to check understanding 🧩 "+
				"5. Decide the outcome yourself using these criteria: "+
				"   • correct: the student recalled the essential fact, even if the wording differed ✅ "+
				"   • incorrect: the answer was absent, wrong, or too vague to show real recall ❌ "+
				"6. A correct answer moves the card up one box; an incorrect answer sends it back to box 1 📦 "+
				"7. Frame a return to box 1 as a fresh start, never as a failure 🌱 "+
				"8. Use LOTS of emojis and an excited, middle school appropriate tone! 🎉",
		),
		// Define parameters
		mcp.WithString("card_id",
			mcp.Required(),
			mcp.Description("The ID of the card being reviewed"),
		),
		mcp.WithString("outcome",
			mcp.Required(),
			mcp.Description("Review outcome: correct or incorrect"),
		),
	)

	// Define the create_card tool
	createCardTool := mcp.NewTool("create_card",
		mcp.WithDescription(
			"Propose a new flashcard to the student based on learning analysis. "+
				"New cards start in box 1 and are due immediately. "+
				"IMPORTANT CONFIRMATION WORKFLOW: "+
				"1. Propose the card details (front, back) to the user for review FIRST. 🤔 "+
				"2. Ask the user explicitly if they approve creating this card. 👍👎 "+
				"3. ONLY call this tool if the user confirms approval. ✅ "+
				"4. If the user suggests changes, incorporate them and ask for approval again. 🔄 "+
				"CREATIVE GUIDANCE (when proposing the card): "+
				"1. Analyze what topics the student struggled with most in previous cards 📊 "+
				"2. Identify prerequisite concepts they may be missing 🧩 "+
				"3. Focus on fundamental knowledge that applies to multiple missed questions 🔍 "+
				"4. Create cards that build scaffolding for harder concepts 🏗️ "+
				"5. Make questions clear, specific, and targeted 🎯 "+
				"6. Keep answers concise but complete 📝 "+
				"7. Each card should test a single concept 🧠 "+
				"8. Use an enthusiastic tone when discussing the new cards with the student! 🚀 "+
				"9. Get the student excited about learning these new concepts 🤩",
		),
		// Define parameters
		mcp.WithString("collection_id",
			mcp.Required(),
			mcp.Description("The ID of the collection the card belongs to"),
		),
		mcp.WithString("front",
			mcp.Required(),
			mcp.Description("The front text of the card"),
		),
		mcp.WithString("back",
			mcp.Required(),
			mcp.Description("The back text of the card"),
		),
	)

	// Define the update_card tool
	updateCardTool := mcp.NewTool("update_card",
		mcp.WithDescription(
			"Update an existing flashcard's text. "+
				"Editing changes the card's wording only; its box and review schedule stay put 📦 "+
				"IMPORTANT EDUCATIONAL GUIDANCE: "+
				"1. Preserve the educational intent of the card 🎓 "+
				"2. Improve clarity or accuracy to aid learning 🔍 "+
				"3. Consider making the card more engaging for middle school students 🎮 "+
				"4. Use enthusiastic language when discussing the improvements 🚀 "+
				"5. Get the student excited about the enhanced card! 🤩",
		),
		// Define parameters
		mcp.WithString("card_id",
			mcp.Required(),
			mcp.Description("The ID of the card to update"),
		),
		mcp.WithString("front",
			mcp.Description("The new front text of the card"),
		),
		mcp.WithString("back",
			mcp.Description("The new back text of the card"),
		),
	)

	// Define the delete_card tool
	deleteCardTool := mcp.NewTool("delete_card",
		mcp.WithDescription("Delete a flashcard and its review history"),
		// Define parameters
		mcp.WithString("card_id",
			mcp.Required(),
			mcp.Description("The ID of the card to delete"),
		),
	)

	// Define the list_cards tool
	listCardsTool := mcp.NewTool("list_cards",
		mcp.WithDescription(
			"List all flashcards, optionally restricted to one collection. "+
				"IMPORTANT EDUCATIONAL GUIDANCE: "+
				"1. When displaying cards to the student, prefer to show only the question side "+
				"   unless the student specifically requests to see both sides 📝 "+
				"2. Use this data to identify patterns in what the student finds challenging 🔍 "+
				"3. Look for gaps in prerequisite knowledge based on cards stuck in low boxes 🧩 "+
				"4. Maintain an enthusiastic, encouraging tone when discussing the cards 🚀 "+
				"5. Use plenty of emojis and positive language! 🤩 ✨ 💪",
		),
		// Define parameters
		mcp.WithString("collection_id",
			mcp.Description("Only list cards from this collection"),
		),
		mcp.WithBoolean("include_stats",
			mcp.Description("Include statistics in the response"),
		),
	)

	// Register all card and review tools with their handlers
	s.AddTool(getDueCardTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Pass the context with service to the handler
		return handleGetDueCard(ctx, request)
	})
	s.AddTool(submitReviewTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSubmitReview(ctx, request)
	})
	s.AddTool(createCardTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreateCard(ctx, request)
	})
	s.AddTool(updateCardTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleUpdateCard(ctx, request)
	})
	s.AddTool(deleteCardTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDeleteCard(ctx, request)
	})
	s.AddTool(listCardsTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListCards(ctx, request)
	})

	// Define the create_collection tool
	createCollectionTool := mcp.NewTool("create_collection",
		mcp.WithDescription(
			"Create a new collection of flashcards with its own review schedule. "+
				"Collections group cards by subject (for example 'Spanish Vocabulary' or 'Chemistry Basics'). "+
				"The schedule lists how many days a card in each box waits between reviews; "+
				"omit it to use the default of 1, 3, 7, 14, and 30 days.",
		),
		// Define parameters
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Name of the collection"),
		),
		mcp.WithArray("intervals",
			mcp.Description("Five positive, strictly increasing day counts, one per box (default [1,3,7,14,30])"),
		),
	)

	// Define the set_intervals tool
	setIntervalsTool := mcp.NewTool("set_intervals",
		mcp.WithDescription(
			"Replace a collection's review schedule. "+
				"The schedule lists how many days a card in each box waits between reviews. "+
				"It must contain exactly five positive, strictly increasing day counts; "+
				"invalid schedules are rejected and the stored schedule is left unchanged.",
		),
		// Define parameters
		mcp.WithString("collection_id",
			mcp.Required(),
			mcp.Description("The ID of the collection to update"),
		),
		mcp.WithArray("intervals",
			mcp.Required(),
			mcp.Description("Five positive, strictly increasing day counts, one per box"),
		),
	)

	// Define the delete_collection tool
	deleteCollectionTool := mcp.NewTool("delete_collection",
		mcp.WithDescription(
			"Delete a collection along with all of its cards and their review history. "+
				"This cannot be undone, so confirm with the student first! ⚠️",
		),
		// Define parameters
		mcp.WithString("collection_id",
			mcp.Required(),
			mcp.Description("The ID of the collection to delete"),
		),
	)

	// Define the list_collections tool
	listCollectionsTool := mcp.NewTool("list_collections",
		mcp.WithDescription("List all flashcard collections with their review schedules"),
		// No parameters required for now
	)

	// Define the get_stats tool
	getStatsTool := mcp.NewTool("get_stats",
		mcp.WithDescription(
			"Get review statistics: total cards, cards per box, cards due now, and correct/incorrect counts. "+
				"Omit collection_id to aggregate across every collection. "+
				"Share progress enthusiastically and celebrate cards climbing toward box 5! 📊 🎉",
		),
		// Define parameters
		mcp.WithString("collection_id",
			mcp.Description("Only include cards from this collection"),
		),
	)

	// Register the collection and statistics tools
	s.AddTool(createCollectionTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleCreateCollection(ctx, request)
	})
	s.AddTool(setIntervalsTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSetIntervals(ctx, request)
	})
	s.AddTool(deleteCollectionTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDeleteCollection(ctx, request)
	})
	s.AddTool(listCollectionsTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListCollections(ctx, request)
	})
	s.AddTool(getStatsTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetStats(ctx, request)
	})

	// Define the help_analyze_learning tool
	helpAnalyzeLearningTool := mcp.NewTool(
		"help_analyze_learning",
		mcp.WithDescription(
			"Analyze the student's learning progress and suggest improvements. "+
				"IMPORTANT EDUCATIONAL GUIDANCE: "+
				"1. Review the student's performance across all cards 📊 "+
				"2. Identify patterns in what concepts are challenging 🧩 "+
				"3. Suggest new cards that would help with prerequisite knowledge 💡 "+
				"4. Look for fundamental concepts that apply across multiple difficult cards 🔍 "+
				"5. Explain your analysis enthusiastically and supportively 🚀 "+
				"6. Use many emojis and exciting middle-school appropriate language 🤩 "+
				"7. Get the student excited about mastering these concepts! 💪 "+
				"8. Frame challenges as opportunities for growth, not as failures ✨ "+
				"9. Suggest specific strategies tailored to their learning patterns 🎯",
		),
		// Define parameters
		mcp.WithString("collection_id",
			mcp.Description("Only analyze cards from this collection"),
		),
	)

	// Register the help_analyze_learning tool with the implemented handler
	s.AddTool(helpAnalyzeLearningTool, func(reqCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		// Pass the context with service to the handler
		return handleHelpAnalyzeLearning(ctx, request)
	})

	// Register resources so clients can browse collections and progress
	collectionsResource := mcp.NewResource(
		"available-collections",
		"Available Collections",
		mcp.WithResourceDescription("All flashcard collections with review schedules, card counts, and due counts"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(collectionsResource, func(reqCtx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCollectionsResource(ctx, request)
	})

	boxProgressResource := mcp.NewResource(
		"box-progress",
		"Box Progress",
		mcp.WithResourceDescription("Per-collection box counts and mastery progress"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(boxProgressResource, func(reqCtx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleBoxProgressResource(ctx, request)
	})

	// Start the server
	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("Error serving MCP server: %v", err)
	}
}
