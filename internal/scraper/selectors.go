package scraper

// Naver blog DOM selectors and URLs.
// These are isolated here because Naver changes its markup without notice.
// Update these when discovery or an action chain breaks.

// Landing and login
const (
	LandingURL = "https://www.naver.com"
	LoginURL   = "https://nid.naver.com/nidlogin.login"

	LoginLink     = `a.MyView-module__link_login___HpHMW`
	LoginID       = `#id`
	LoginPassword = `#pw`
	LoginSubmit   = `[id="log.login"]`
)

// Session cookies that mark an authenticated Naver session
const (
	CookieAuth    = "NID_AUT"
	CookieSession = "NID_SES"
)

// Sympathy (reaction) history list used by the neighbor campaign
const (
	SympathyListURL = "https://blog.naver.com/SympathyHistoryList.naver?blogId=%s&logNo=%s&categoryId=3"

	LoadMore       = `#_loadNext`
	AddBuddyButton = `a.btn_buddy._addBuddyPop`
	// AccountNameInRow is resolved against the closest li of a button.
	AccountNameInRow = `.nick a, .author, [class*="name"]`
)

// Follow-request popup
const (
	MutualOption         = `label[for="each_buddy_add"]`
	MutualOptionDisabled = `label[for="each_buddy_add"].disabled, .disabled label[for="each_buddy_add"]`
	PopupNext            = `a.button_next, a._buddyAddNext`
	PopupMessage         = `textarea`
	PopupSubmit          = `a.button_next, a.button_ok`
	PopupAnchor          = `a`
	PopupButton          = `button`
)

// Admin neighbor management, rendered inside the papermain frame
const (
	BuddyAdminURL = "https://admin.blog.naver.com/AdminMain.naver?blogId=%s&Redirect=Buddyinfo"
	BuddyFrame    = "papermain"

	GroupSelectBox   = `#buddysel_groupall .selectbox-box`
	GroupSelectItems = `#buddysel_groupall .selectbox-list li`
	SortSelectBox    = `#buddysel_order .selectbox-box`
	SortSelectLabel  = `#buddysel_order .selectbox-label`
	SortSelectItems  = `#buddysel_order .selectbox-list li`

	BuddyRows     = `table.tbl_buddymanage tbody tr`
	BuddyBlogLink = `td.buddy a[href*='blog.naver.com']`
	BuddyNickname = `td.buddy .nickname`

	BuddyCurrentPage = `.paginate strong, .page_number strong`
	BuddyPageLinks   = `.paginate a, .page_number a`
	BuddyNextLink    = `a.next`
	BuddyPaginate    = `.paginate a`

	// Keywords shown in the sort dropdown
	SortKeywordUpdate = "업데이트"
	SortKeywordAdded  = "이웃추가"
)

// Own post list used by the reply campaign
const (
	PostListURL = "https://blog.naver.com/PostList.naver?blogId=%s&categoryNo=0&from=postList&currentPage=%d"
	// LatestPostURL is the first post list page, used to find a blog's newest post.
	LatestPostURL = "https://blog.naver.com/PostList.naver?blogId=%s&categoryNo=0&from=postList"

	PostRows     = `table.blog2_categorylist tr`
	PostTitle    = `td.title`
	PostDate     = `td.date span.date`
	PostLink     = `a[href*='PostView']`
	PostPageLink = `div.blog2_paginate a._goPageTop`
)

// Post view
const (
	PostURL       = "https://blog.naver.com/%s/%s"
	PostViewFrame = "PostView"

	PostTitleText = `.se-title-text`
	PostBody      = `.se-main-container`

	ReactionFace = `.my_reaction a.u_likeit_button._face`
	ReactionLike = `.my_reaction a.u_likeit_list_button._button[data-type="like"]`
)

// Comment box
const (
	CommentListToggle = `a._cmtList`
	CommentRows       = `li.u_cbox_comment`
	CommentNick       = `.u_cbox_nick`
	CommentContents   = `.u_cbox_contents`
	CommentAuthorLink = `.u_cbox_info a[href*='blog.naver.com']`
	CommentOwnerBadge = `.u_cbox_ico_editor`
	CommentNameLink   = `.u_cbox_name`
	CommentPageFmt    = `.u_cbox_paginate a.u_cbox_page[data-param='%d']`

	CommentGuide        = `.u_cbox_guide`
	CommentEditor       = `div[contenteditable="true"].u_cbox_text`
	CommentEditorAny    = `div[contenteditable="true"]`
	CommentUpload       = `.u_cbox_btn_upload`
	CommentReplyButton  = `.u_cbox_btn_reply`
	ReplyEditorFmt      = `[contenteditable="true"][id*="%s"]`
	CommentWriteKeyword = "댓글 쓰기"
	CommentKeyword      = "댓글"
	RegisterKeyword     = "등록"
)

// Popup and dialog keywords
const (
	KeywordNext    = "다음"
	KeywordConfirm = "확인"
	KeywordApply   = "신청"
)
