package landmark

// mediaPipeEdges are the 33-point pose connections, shared by Kinect33 and MediaPipe33
var mediaPipeEdges = []Edge{
	{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4}, {4, 5}, {5, 6}, {6, 8},
	{9, 10}, {11, 12}, {11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21},
	{17, 19}, {12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22}, {18, 20},
	{11, 23}, {12, 24}, {23, 24}, {23, 25}, {24, 26}, {25, 27}, {26, 28},
	{27, 29}, {28, 30}, {29, 31}, {30, 32}, {27, 31}, {28, 32},
}

// Kinect33 names MediaPipe's 33 points after the Kinect joints where one
// exists. It is the address set of the legacy single-person broadcast.
var Kinect33 = register(newSchema("kinect33", []Name{
	"head",
	"mp_eye_inner_l",
	"eye_l",
	"mp_eye_outer_l",
	"mp_eye_inner_r",
	"eye_r",
	"mp_eye_outer_e", // wire name as shipped; receivers key on it
	"mp_ear_l",
	"mp_ear_r",
	"mp_mouth_l",
	"mp_mouth_r",
	"shoulder_l",
	"shoulder_r",
	"elbow_l",
	"elbow_r",
	"wrist_l",
	"wrist_r",
	"mp_pinky_l",
	"mp_pinky_r",
	"handtip_l",
	"handtip_r",
	"thumb_l",
	"thumb_r",
	"hip_l",
	"hip_r",
	"knee_l",
	"knee_r",
	"ankle_l",
	"ankle_r",
	"mp_heel_l",
	"mp_heel_r",
	"foot_l",
	"foot_r",
}, mediaPipeEdges))

// MediaPipe33 is MediaPipe's own naming of its 33 pose landmarks
var MediaPipe33 = register(newSchema("mediapipe33", []Name{
	"nose",
	"left_eye_inner",
	"left_eye",
	"left_eye_outer",
	"right_eye_inner",
	"right_eye",
	"right_eye_outer",
	"left_ear",
	"right_ear",
	"mouth_left",
	"mouth_right",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_pinky",
	"right_pinky",
	"left_index",
	"right_index",
	"left_thumb",
	"right_thumb",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
	"left_heel",
	"right_heel",
	"left_foot_index",
	"right_foot_index",
}, mediaPipeEdges))

// COCO17 is the 17 keypoint COCO layout used by MoveNet and PoseNet.
// Names match MediaPipe33 for the points both expose.
var COCO17 = register(newSchema("coco17", []Name{
	"nose",
	"left_eye",
	"right_eye",
	"left_ear",
	"right_ear",
	"left_shoulder",
	"right_shoulder",
	"left_elbow",
	"right_elbow",
	"left_wrist",
	"right_wrist",
	"left_hip",
	"right_hip",
	"left_knee",
	"right_knee",
	"left_ankle",
	"right_ankle",
}, []Edge{
	{0, 1}, {0, 2}, {1, 3}, {2, 4},
	{5, 6}, {5, 7}, {5, 11}, {6, 8}, {6, 12},
	{7, 9}, {8, 10}, {11, 12}, {11, 13}, {13, 15},
	{12, 14}, {14, 16},
}))

// Body25 is OpenPose's BODY_25 layout
var Body25 = register(newSchema("body25", []Name{
	"nose",
	"neck",
	"right_shoulder",
	"right_elbow",
	"right_wrist",
	"left_shoulder",
	"left_elbow",
	"left_wrist",
	"mid_hip",
	"right_hip",
	"right_knee",
	"right_ankle",
	"left_hip",
	"left_knee",
	"left_ankle",
	"right_eye",
	"left_eye",
	"right_ear",
	"left_ear",
	"left_big_toe",
	"left_small_toe",
	"left_heel",
	"right_big_toe",
	"right_small_toe",
	"right_heel",
}, []Edge{
	{1, 8}, {1, 2}, {1, 5}, {2, 3}, {3, 4}, {5, 6}, {6, 7},
	{8, 9}, {9, 10}, {10, 11}, {8, 12}, {12, 13}, {13, 14},
	{1, 0}, {0, 15}, {15, 17}, {0, 16}, {16, 18},
	{14, 19}, {19, 20}, {14, 21}, {11, 22}, {22, 23}, {11, 24},
}))
